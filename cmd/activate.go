package cmd

import (
	"fmt"

	"github.com/msettings/msettings/cmd/common"
	"github.com/msettings/msettings/internal/activation"
	"github.com/msettings/msettings/internal/config"
	"github.com/msettings/msettings/internal/instance"
	"github.com/urfave/cli"
)

func activate(ctx *cli.Context) error {
	p, err := config.ResolvePaths(configDir, targetPath)
	if err != nil {
		common.PrintRuntimeErr(ctx, "activate", "resolve_paths", err)
		return nil
	}
	pid, ok := instance.Owner(p.LockFile)
	if !ok {
		fmt.Println("msettings is not running")
		return nil
	}
	if err := activation.New(p.ActivationSignal).Signal(); err != nil {
		common.PrintRuntimeErr(ctx, "activate", "signal", err)
		return nil
	}
	fmt.Printf("Asked msettings (pid %d) to come to the foreground\n", pid)
	return nil
}
