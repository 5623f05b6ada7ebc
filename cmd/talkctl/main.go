// Command talkctl drives a Nextcloud Talk server from the shell.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/capitalize-ai/talkbridge/pkg/logger"
	"github.com/capitalize-ai/talkbridge/pkg/talk"
)

func main() {
	_ = godotenv.Load(".env")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "talkctl:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "talkctl",
		Usage: "manage Nextcloud Talk rooms and chats",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "server base URL", EnvVars: []string{"TALK_URL"}, Required: true},
			&cli.StringFlag{Name: "user", Usage: "login name", EnvVars: []string{"TALK_USER"}, Required: true},
			&cli.StringFlag{Name: "password", Usage: "app password", EnvVars: []string{"TALK_PASSWORD"}, Required: true},
			&cli.DurationFlag{Name: "timeout", Usage: "per-request timeout", EnvVars: []string{"TALK_TIMEOUT"}},
			&cli.BoolFlag{Name: "json", Usage: "print JSON instead of text"},
			&cli.StringFlag{Name: "log-level", Value: "warn", EnvVars: []string{"LOG_LEVEL"}},
		},
		Commands: []*cli.Command{
			capabilitiesCommand(),
			roomsCommand(),
			participantsCommand(),
			sendCommand(),
			historyCommand(),
			pollCommand(),
			shareCommand(),
			clearCommand(),
		},
	}
}

// newClient builds a library client from the global flags.
func newClient(c *cli.Context) (*talk.Client, error) {
	log, err := logger.NewDevelopment(c.String("log-level"))
	if err != nil {
		return nil, err
	}
	return talk.New(talk.Config{
		BaseURL: c.String("url"),
		Session: talk.NewHTTPSession(talk.HTTPSessionConfig{
			Username:  c.String("user"),
			Password:  c.String("password"),
			Timeout:   c.Duration("timeout"),
			UserAgent: "talkctl",
		}),
		Logger: log,
	})
}

// room resolves the room named by the first argument.
func room(c *cli.Context) (*talk.Conversation, error) {
	token := c.Args().First()
	if token == "" {
		return nil, cli.Exit("missing room token", 2)
	}
	client, err := newClient(c)
	if err != nil {
		return nil, err
	}
	api, err := client.Conversations(c.Context)
	if err != nil {
		return nil, err
	}
	return api.Get(c.Context, token)
}
