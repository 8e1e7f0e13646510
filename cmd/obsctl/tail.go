package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"

	"github.com/wcharczuk/observatory/internal/observatory"
)

var tail = &cli.Command{
	Name:  "tail",
	Usage: "Stream live events for a tab, like the devtools panel",
	Flags: withDefaultFlags(
		&cli.IntFlag{
			Name:     "tab-id",
			Usage:    "The tab to watch",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "domain",
			Usage: "A domain to receive tracking state updates for",
		},
	),
	Action: func(ctx context.Context, c *cli.Command) error {
		viewerURL, err := newDaemonClient(c.String("daemon")).ViewerURL()
		if err != nil {
			return err
		}
		return tailViewer(ctx, viewerURL, observatory.Register{
			Type:   observatory.MessageTypeRegister,
			TabID:  c.Int("tab-id"),
			Domain: c.String("domain"),
		}, os.Stdout)
	},
}

// tailViewer registers as a viewer and prints each message until the
// context is done or the daemon closes the connection.
func tailViewer(ctx context.Context, viewerURL string, register observatory.Register, w io.Writer) error {
	debugf("dialing %s", viewerURL)
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, viewerURL, nil)
	if err != nil {
		return fmt.Errorf("dialing viewer: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(register); err != nil {
		return fmt.Errorf("registering viewer: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		var msg observatory.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if err := printMessage(w, msg); err != nil {
			return err
		}
	}
}

func printMessage(w io.Writer, msg observatory.Message) (err error) {
	switch msg.Type {
	case observatory.MessageTypeLog:
		if msg.Payload == nil {
			return nil
		}
		ev := msg.Payload
		line := fmt.Sprintf("%s %-4s %s %d %dms", time.UnixMilli(ev.Timestamp).UTC().Format(time.RFC3339), ev.Method, ev.URL, ev.StatusCode, ev.DurationMs)
		if ev.Error != "" {
			line += " error=" + ev.Error
		}
		_, err = fmt.Fprintln(w, line)
	case observatory.MessageTypeState:
		var data []byte
		if data, err = json.Marshal(msg); err != nil {
			return
		}
		_, err = fmt.Fprintf(w, "STATE %s\n", data)
	}
	return
}
