package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/kardianos/service"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/caldog20/chattun/node"
)

const serviceName = "com.chattun.tunnel.service"

type program struct {
	cfg    *node.Config
	node   *node.Node
	cancel context.CancelFunc
}

func (p *program) Start(s service.Service) error {
	if p.cfg == nil {
		return errors.New("service started without a config")
	}

	n, err := node.NewNode(p.cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := n.Start(ctx); err != nil {
		cancel()
		return err
	}

	p.node = n
	p.cancel = cancel

	// A tunnel that fails exits the process so the service manager can
	// restart it.
	go func() {
		if err := n.Wait(); err != nil && ctx.Err() == nil {
			log.Errorf("tunnel failed: %v", err)
			os.Exit(1)
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	if p.node == nil {
		return nil
	}
	p.cancel()
	return p.node.Wait()
}

func NewService(program service.Interface, args ...string) (service.Service, error) {
	return service.New(program, serviceConfig(args...))
}

// serviceConfig restarts the tunnel whenever it exits with a non-zero status.
func serviceConfig(args ...string) *service.Config {
	options := make(service.KeyValue)
	options["Restart"] = "on-failure"
	return &service.Config{
		Name:        serviceName,
		DisplayName: "chattun tunnel",
		Description: "IP tunnel over chat platforms",
		Arguments:   args,
		Option:      options,
	}
}

func NewServiceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "manage the background service",
	}

	cmd.AddCommand(
		newServiceInstallCommand(),
		newServiceControlCommand("uninstall", "uninstall the background service", service.Service.Uninstall),
		newServiceControlCommand("start", "start the background service", service.Service.Start),
		newServiceControlCommand("stop", "stop the background service", service.Service.Stop),
		newServiceRunCommand(),
	)
	return cmd
}

func newServiceInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "install the background service, needs --config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return errors.New("the service needs a config file, use --config")
			}
			path, err := filepath.Abs(configPath)
			if err != nil {
				return err
			}

			// Fail now rather than in the service manager.
			cfg, err := node.LoadConfig(path)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			svcArgs := []string{"service", "run", "--config", path}
			if debug {
				svcArgs = append(svcArgs, "--debug")
			}

			svc, err := NewService(&program{}, svcArgs...)
			if err != nil {
				return err
			}
			if err := svc.Install(); err != nil {
				return err
			}
			log.Infof("installed %s using %s", serviceName, path)
			return nil
		},
	}
}

func newServiceControlCommand(use, short string, action func(service.Service) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := NewService(&program{})
			if err != nil {
				return err
			}
			return action(svc)
		},
	}
}

func newServiceRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "run",
		Short:  "runs the tunnel under the service manager",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), "")
			if err != nil {
				return err
			}
			if cfg.Debug {
				setupLogging(true)
			}

			svc, err := NewService(&program{cfg: cfg})
			if err != nil {
				return err
			}
			return svc.Run()
		},
	}
}
