package main

import (
	"fmt"
	"hoursrelay/internal/actiontoken"
	"hoursrelay/internal/config"
	"hoursrelay/internal/middleware"
	"hoursrelay/internal/services"
	"time"

	"github.com/urfave/cli/v2"
)

func App() *cli.App {
	return &cli.App{
		Name:  "actionlink",
		Usage: "generate and check signed approve/deny links for volunteer hours",
		Commands: []*cli.Command{
			generateCommand(),
			verifyCommand(),
			serviceTokenCommand(),
		},
	}
}

func linkFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "hours-id", Usage: "volunteer_hours record id", Required: true},
		&cli.StringFlag{Name: "action", Usage: "approve or deny", Required: true},
		&cli.StringFlag{Name: "email", Usage: "verifier email the link is bound to", Required: true},
	}
}

// loadCodec читает SECRET_KEY и FRONTEND_URL так же, как сервис.
func loadCodec() (*actiontoken.Codec, *config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	codec, err := actiontoken.NewCodec(cfg.SecretKey)
	if err != nil {
		return nil, nil, fmt.Errorf("SECRET_KEY: %w", err)
	}
	return codec, cfg, nil
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "issue a token and print the verification link",
		Flags: linkFlags(),
		Action: func(c *cli.Context) error {
			action := c.String("action")
			if !actiontoken.ValidAction(action) {
				return fmt.Errorf("unknown action %q", action)
			}
			codec, cfg, err := loadCodec()
			if err != nil {
				return err
			}

			token := codec.Generate(c.String("hours-id"), action, c.String("email"))
			link := services.VerificationLink(cfg.FrontendURL, token, action, c.String("hours-id"), c.String("email"))
			expires := time.Now().Add(actiontoken.Validity).UTC().Format(time.RFC3339)

			fmt.Fprintf(c.App.Writer, "token:   %s\nlink:    %s\nexpires: %s\n", token, link, expires)
			return nil
		},
	}
}

func verifyCommand() *cli.Command {
	flags := append(linkFlags(), &cli.StringFlag{Name: "token", Usage: "token from the link", Required: true})
	return &cli.Command{
		Name:  "verify",
		Usage: "check a token against the record, action and email",
		Flags: flags,
		Action: func(c *cli.Context) error {
			codec, _, err := loadCodec()
			if err != nil {
				return err
			}

			token := c.String("token")
			if !codec.Verify(token, c.String("hours-id"), c.String("action"), c.String("email")) {
				fmt.Fprintln(c.App.Writer, "invalid")
				return cli.Exit("", 2)
			}
			fmt.Fprintf(c.App.Writer, "valid (expires in %s)\n", codec.Remaining(token).Truncate(time.Second))
			return nil
		},
	}
}

func serviceTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "service-token",
		Usage: "issue a JWT for calling the notification endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Value: "platform", Usage: "caller name (sub claim)"},
			&cli.StringFlag{Name: "role", Value: "service", Usage: "service or admin"},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "token lifetime"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.ServiceJWTSecret == "" {
				return fmt.Errorf("SERVICE_JWT_SECRET is not set")
			}
			token, err := middleware.GenerateServiceToken(cfg.ServiceJWTSecret, c.String("subject"), c.String("role"), c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}
