package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/arenahub/playground-client/internal/config"
	apperrors "github.com/arenahub/playground-client/internal/errors"
	"github.com/arenahub/playground-client/internal/jobs"
	"github.com/arenahub/playground-client/internal/model"
	"github.com/arenahub/playground-client/internal/storage"
	"github.com/arenahub/playground-client/internal/util"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := run(os.Args[1:]); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || isHelp(args[0]) {
		printHelp()
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setLogLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, config.StartupTimeout)
	c, err := newClient(startCtx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer c.Close()

	cmd, rest := args[0], args[1:]
	if cmd == "migrate" {
		return runMigrate(ctx, c)
	}

	c.store.Restore(ctx)

	switch cmd {
	case "status":
		return runStatus(ctx, c)
	case "login-public", "login-player":
		return runLogin(ctx, c, cmd, rest)
	case "logout":
		if err := c.store.Logout(ctx); err != nil {
			return err
		}
		printOK("signed out")
		return nil
	case "portal-refresh":
		return runPortalRefresh(ctx, c, hasFlag(rest, "--force"))
	case "overview":
		return runOverview(ctx, c)
	case "keepalive":
		return runKeepAlive(ctx, c)
	default:
		printHelp()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runLogin(ctx context.Context, c *client, cmd string, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: arena %s <identifier> <password>", cmd)
	}
	creds := model.Credentials{Identifier: args[0], Password: args[1]}

	var err error
	if cmd == "login-player" {
		err = c.store.LoginPlayer(ctx, creds)
	} else {
		err = c.store.LoginPublic(ctx, creds)
	}
	if err != nil {
		return err
	}
	printOK("signed in as " + string(c.store.State().Session.UserType))
	return nil
}

func runMigrate(ctx context.Context, c *client) error {
	report, err := c.creds.Migrate(ctx)
	if err != nil {
		return err
	}
	printFields([]field{
		{"tier", string(c.creds.Tier())},
		{"copied", fmt.Sprint(report.Copied)},
		{"skipped", fmt.Sprint(report.Skipped)},
		{"removed", fmt.Sprint(report.Removed)},
	})
	return nil
}

func runStatus(ctx context.Context, c *client) error {
	state := c.store.State()
	fields := []field{
		{"status", string(state.Status)},
		{"credential tier", string(c.creds.Tier())},
		{"state tier", string(c.kv.Tier())},
		{"locale", c.prefs.Locale(ctx)},
	}
	if state.Session != nil {
		fields = append(fields, field{"user type", string(state.Session.UserType)})
	}
	if cred, ok, err := c.creds.Lookup(ctx, storage.KeyBearerToken); err == nil && ok {
		fields = append(fields, field{"bearer", util.MaskToken(cred.Value) + " (" + string(cred.Tier) + ")"})
	}
	if ps := c.store.PortalSession(); ps != nil && ps.Session.IsPlayer() {
		v := c.manager.Validate(ps.Session)
		portalState := "ok"
		if !v.OK {
			portalState = v.Reason
		}
		fields = append(fields,
			field{"portal", portalState},
			field{"academy", ps.AcademyID()},
			field{"try-out", fmt.Sprint(ps.TryOutID)},
		)
	}
	printFields(fields)
	return nil
}

func runPortalRefresh(ctx context.Context, c *client, force bool) error {
	if _, err := c.manager.RefreshIfNeeded(ctx, force); err != nil {
		return err
	}
	printOK("portal session is usable")
	return nil
}

func runOverview(ctx context.Context, c *client) error {
	r := c.portal.Overview(ctx)
	if r.Canceled {
		return ctx.Err()
	}
	if r.Error != nil {
		return r.Error
	}
	printFields([]field{
		{"academy", r.Data.AcademyID},
		{"player", r.Data.PlayerID},
		{"try-out", fmt.Sprint(r.Data.TryOutID)},
	})
	return nil
}

// runKeepAlive keeps the portal session warm until interrupted.
func runKeepAlive(ctx context.Context, c *client) error {
	interval := c.cfg.PortalKeepAlive()
	if interval <= 0 {
		return fmt.Errorf("PORTAL_KEEPALIVE_SECONDS must be set to run keepalive")
	}

	job := jobs.NewPortalKeepAliveJob(c.manager, interval)
	job.Start()
	defer job.Stop()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	return nil
}

func printError(err error) {
	if appErr, ok := apperrors.AsAppError(err); ok {
		printFailure(fmt.Sprintf("%s (%s)", appErr.Message, apperrors.Present(appErr)))
		return
	}
	printFailure(err.Error())
}

func isHelp(arg string) bool {
	return arg == "help" || arg == "--help" || arg == "-h"
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
