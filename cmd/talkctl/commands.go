package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/capitalize-ai/talkbridge/internal/model"
	"github.com/capitalize-ai/talkbridge/internal/service"
	"github.com/capitalize-ai/talkbridge/pkg/talk"
	"github.com/capitalize-ai/talkbridge/pkg/talk/richobject"
)

func capabilitiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "capabilities",
		Usage: "show the server version and Talk features",
		Action: func(c *cli.Context) error {
			client, err := newClient(c)
			if err != nil {
				return err
			}
			features, err := client.Capabilities(c.Context)
			if err != nil {
				return err
			}
			version, err := client.ServerVersion(c.Context)
			if err != nil {
				return err
			}

			sorted := append([]string(nil), features...)
			sort.Strings(sorted)
			if c.Bool("json") {
				return printJSON(c, map[string]any{"version": version, "features": sorted})
			}
			fmt.Fprintln(c.App.Writer, "version:", version)
			for _, f := range sorted {
				fmt.Fprintln(c.App.Writer, " ", f)
			}
			return nil
		},
	}
}

func roomsCommand() *cli.Command {
	return &cli.Command{
		Name:  "rooms",
		Usage: "list and manage rooms",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list the rooms of the current user",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "listed", Usage: "list open rooms the user can join instead"},
					&cli.StringFlag{Name: "search", Usage: "filter listed rooms by name"},
				},
				Action: func(c *cli.Context) error {
					client, err := newClient(c)
					if err != nil {
						return err
					}
					api, err := client.Conversations(c.Context)
					if err != nil {
						return err
					}
					var convs []*talk.Conversation
					if c.Bool("listed") {
						convs, err = api.Listed(c.Context, c.String("search"))
					} else {
						convs, err = api.List(c.Context, talk.ListOptions{})
					}
					if err != nil {
						return err
					}
					return printRooms(c, convs)
				},
			},
			{
				Name:      "get",
				Usage:     "show one room",
				ArgsUsage: "TOKEN",
				Action: func(c *cli.Context) error {
					conv, err := room(c)
					if err != nil {
						return err
					}
					return printRooms(c, []*talk.Conversation{conv})
				},
			},
			{
				Name:      "create",
				Usage:     "create a room",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Value: "group", Usage: "one_to_one, group or public"},
					&cli.StringFlag{Name: "invite", Usage: "user, group or circle id to invite"},
					&cli.StringFlag{Name: "source", Usage: "invite source: users, groups or circles"},
				},
				Action: func(c *cli.Context) error {
					typ, err := talk.ParseConversationType(c.String("type"))
					if err != nil {
						return err
					}
					client, err := newClient(c)
					if err != nil {
						return err
					}
					api, err := client.Conversations(c.Context)
					if err != nil {
						return err
					}
					conv, err := api.New(c.Context, talk.CreateOptions{
						Type:   typ,
						Name:   c.Args().First(),
						Invite: c.String("invite"),
						Source: c.String("source"),
					})
					if err != nil {
						return err
					}
					return printRooms(c, []*talk.Conversation{conv})
				},
			},
			{
				Name:      "rename",
				Usage:     "rename a room",
				ArgsUsage: "TOKEN NAME",
				Action: func(c *cli.Context) error {
					conv, err := room(c)
					if err != nil {
						return err
					}
					return conv.Rename(c.Context, c.Args().Get(1))
				},
			},
			{
				Name:      "delete",
				Usage:     "delete a room for everyone",
				ArgsUsage: "TOKEN",
				Action: func(c *cli.Context) error {
					conv, err := room(c)
					if err != nil {
						return err
					}
					return conv.Delete(c.Context)
				},
			},
		},
	}
}

func participantsCommand() *cli.Command {
	return &cli.Command{
		Name:      "participants",
		Usage:     "list the attendees of a room",
		ArgsUsage: "TOKEN",
		Action: func(c *cli.Context) error {
			conv, err := room(c)
			if err != nil {
				return err
			}
			parts, err := conv.Participants(c.Context, false)
			if err != nil {
				return err
			}
			out := make([]model.Participant, 0, len(parts))
			for _, p := range parts {
				out = append(out, model.ParticipantFromTalk(p))
			}
			if c.Bool("json") {
				return printJSON(c, out)
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ATTENDEE\tACTOR\tNAME\tROLE\tPERMISSIONS")
			for _, p := range out {
				fmt.Fprintf(tw, "%d\t%s/%s\t%s\t%s\t%s\n", p.AttendeeID, p.ActorType, p.ActorID, p.DisplayName, p.Role, p.Permissions)
			}
			return tw.Flush()
		},
	}
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "post a message",
		ArgsUsage: "TOKEN MESSAGE...",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "reply-to", Usage: "id of the message to reply to"},
			&cli.BoolFlag{Name: "silent", Usage: "send without notifications"},
		},
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Tail(), " ")
			if strings.TrimSpace(text) == "" {
				return cli.Exit("missing message", 2)
			}
			conv, err := room(c)
			if err != nil {
				return err
			}
			msg, err := conv.Send(c.Context, text, talk.SendOptions{
				ReplyTo: c.Int("reply-to"),
				Silent:  c.Bool("silent"),
			})
			if err != nil {
				return err
			}
			return printMessages(c, conv.Token, []*talk.Message{msg})
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "show older messages, newest first",
		ArgsUsage: "TOKEN",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20},
			&cli.IntFlag{Name: "before", Usage: "only messages older than this id"},
		},
		Action: func(c *cli.Context) error {
			conv, err := room(c)
			if err != nil {
				return err
			}
			page, err := conv.Chat().ReceivePage(c.Context, talk.ReceiveOptions{
				Limit:              c.Int("limit"),
				LastKnownMessageID: c.Int("before"),
				KeepUnread:         true,
			})
			if err != nil {
				return err
			}
			if err := printMessages(c, conv.Token, page.Messages); err != nil {
				return err
			}
			if page.LastGiven > 0 && !c.Bool("json") {
				fmt.Fprintf(c.App.ErrWriter, "next page: --before %d\n", page.LastGiven)
			}
			return nil
		},
	}
}

func pollCommand() *cli.Command {
	return &cli.Command{
		Name:      "poll",
		Usage:     "follow new messages until interrupted",
		ArgsUsage: "TOKEN",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "after", Usage: "start after this message id; defaults to the newest"},
			&cli.BoolFlag{Name: "mark-read", Usage: "move the read marker while following"},
		},
		Action: func(c *cli.Context) error {
			conv, err := room(c)
			if err != nil {
				return err
			}
			chat := conv.Chat()

			cursor := c.Int("after")
			if cursor == 0 {
				page, err := chat.ReceivePage(c.Context, talk.ReceiveOptions{Limit: 1, KeepUnread: true})
				if err != nil {
					return err
				}
				cursor = page.LastGiven
			}

			for c.Context.Err() == nil {
				page, err := chat.ReceivePage(c.Context, talk.ReceiveOptions{
					LookIntoFuture:     true,
					LastKnownMessageID: cursor,
					KeepUnread:         !c.Bool("mark-read"),
				})
				if err != nil {
					if c.Context.Err() != nil {
						return nil
					}
					return err
				}
				if err := printMessages(c, conv.Token, page.Messages); err != nil {
					return err
				}
				if page.LastGiven > cursor {
					cursor = page.LastGiven
				}
			}
			return nil
		},
	}
}

func shareCommand() *cli.Command {
	return &cli.Command{
		Name:      "share",
		Usage:     "post a rich object",
		ArgsUsage: "TOKEN TYPE ID [NAME]",
		Description: "TYPE is one of: " + strings.Join(richobject.Types(), ", ") +
			". For geo-location, ID is geo:LAT,LON.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "call-type", Usage: "call type for call objects"},
		},
		Action: func(c *cli.Context) error {
			args := c.Args()
			req := &model.ShareRequest{
				Type:     args.Get(1),
				ID:       args.Get(2),
				Name:     args.Get(3),
				CallType: c.String("call-type"),
			}
			var (
				obj richobject.Object
				err error
			)
			if req.Type == richobject.TypeGeoLocation {
				obj, err = richobject.New(req.Type, req.ID, req.Name)
			} else {
				obj, err = service.ShareObject(req)
			}
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			conv, err := room(c)
			if err != nil {
				return err
			}
			msg, err := conv.ShareRichObject(c.Context, obj, talk.SendOptions{})
			if err != nil {
				return err
			}
			if msg != nil {
				return printMessages(c, conv.Token, []*talk.Message{msg})
			}
			return nil
		},
	}
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:      "clear",
		Usage:     "delete the whole chat history of a room",
		ArgsUsage: "TOKEN",
		Action: func(c *cli.Context) error {
			conv, err := room(c)
			if err != nil {
				return err
			}
			return conv.ClearHistory(c.Context)
		},
	}
}

func printRooms(c *cli.Context, convs []*talk.Conversation) error {
	rooms := make([]model.Room, 0, len(convs))
	for _, conv := range convs {
		rooms = append(rooms, model.RoomFromConversation(conv))
	}
	if c.Bool("json") {
		return printJSON(c, rooms)
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tTYPE\tNAME\tUNREAD\tROLE")
	for _, r := range rooms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.Token, r.Type, r.DisplayName, r.UnreadMessages, r.ParticipantType)
	}
	return tw.Flush()
}

func printMessages(c *cli.Context, token string, msgs []*talk.Message) error {
	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		for _, m := range msgs {
			if err := enc.Encode(model.MessageFromTalk(token, m)); err != nil {
				return err
			}
		}
		return nil
	}
	for _, m := range msgs {
		writeMessage(c.App.Writer, m)
	}
	return nil
}

func writeMessage(w io.Writer, m *talk.Message) {
	name := m.ActorDisplayName
	if name == "" {
		name = m.ActorID
	}
	body := m.Message
	if m.Deleted() {
		body = "(deleted)"
	}
	prefix := ""
	if parent, ok := m.Parent(); ok {
		prefix = "↪" + strconv.Itoa(parent.ID) + " "
	}
	fmt.Fprintf(w, "[%d] %s %s: %s%s\n", m.ID, m.Time().Format("2006-01-02 15:04"), name, prefix, body)
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
