package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nsong/lingotalk/internal/config"
	"github.com/nsong/lingotalk/internal/history"
	"github.com/nsong/lingotalk/internal/model/chat"
	"github.com/nsong/lingotalk/internal/service/session"
	"github.com/nsong/lingotalk/internal/service/translate"
	"github.com/nsong/lingotalk/internal/transport"
	"github.com/nsong/lingotalk/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Debug)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatal("client exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zlog *zap.Logger) error {
	viewer := cfg.Client.Viewer()

	var historian history.Store
	if pebbleStore, err := history.OpenPebble(cfg.Client.HistoryPath, zlog); err != nil {
		zlog.Warn("history store unavailable, keeping history in memory", zap.Error(err))
		historian = history.NewMemoryStore()
	} else {
		historian = pebbleStore
	}
	defer historian.Close()

	var translator translate.Translator
	if cfg.Translation.Enabled() {
		arkTranslator, err := translate.NewArk(ctx, cfg.Translation, zlog)
		if err != nil {
			zlog.Warn("translator unavailable, showing originals only", zap.Error(err))
			translator = translate.Noop{}
		} else {
			translator = arkTranslator
		}
	} else {
		zlog.Info("translation credentials not configured, showing originals only")
		translator = translate.Noop{}
	}

	client := transport.NewClient(cfg.Client.ServerURL, viewer, zlog)

	// Codes are shared in their display form, dashes included.
	room := chat.Room{Code: strings.ToUpper(strings.ReplaceAll(cfg.Client.RoomCode, "-", ""))}
	if room.Code == "" {
		created, err := client.CreateRoom(ctx)
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		room = created
		fmt.Printf("created room %s\n", chat.FormatRoomCode(room.Code))
	}

	renderer := newRenderer(viewer, cfg.Client.ShowTranslated)

	sess := session.New(session.Config{
		Transport:  client,
		Translator: translator,
		History:    historian,
		Viewer:     viewer,
		Room:       room,
		Logger:     zlog,
		OnUpdate:   func() { renderer.render(nil) },
	})

	if err := sess.Join(ctx); err != nil {
		return fmt.Errorf("join room %s: %w", room.Code, err)
	}
	fmt.Printf("joined room %s as %s, type a message and press enter (/quit to leave)\n",
		chat.FormatRoomCode(room.Code), viewer.Nickname)

	renderer.attach(sess)

	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if text == "/quit" {
				return
			}
			created, err := sess.Send(ctx, text)
			if err != nil {
				fmt.Printf("! send failed: %v\n", err)
				continue
			}
			if !created {
				fmt.Println("! message was not accepted, try again")
			}
		}
	}()

	select {
	case <-ctx.Done():
	case <-inputDone:
	}

	leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sess.Leave(leaveCtx); err != nil {
		zlog.Warn("leave failed", zap.Error(err))
	}
	fmt.Println("left the room")
	return nil
}

// renderer prints timeline growth to stdout. Flags computed by the
// timeline decide date separators, sender headers and timestamps.
type renderer struct {
	mu             sync.Mutex
	sess           *session.Session
	viewer         chat.User
	showTranslated bool
	printed        int
}

func newRenderer(viewer chat.User, showTranslated bool) *renderer {
	return &renderer{viewer: viewer, showTranslated: showTranslated}
}

// attach binds the session and flushes anything that arrived before
// the prompt was printed.
func (r *renderer) attach(sess *session.Session) {
	r.render(sess)
}

func (r *renderer) render(sess *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess != nil {
		r.sess = sess
	}
	if r.sess == nil {
		return
	}

	messages := r.sess.Timeline().Messages()
	for ; r.printed < len(messages); r.printed++ {
		r.print(messages[r.printed])
	}
}

func (r *renderer) print(m chat.Message) {
	if m.IsTranslated && !r.showTranslated {
		return
	}

	if m.IsFirstOfDay {
		fmt.Printf("---- %s ----\n", strings.SplitN(m.Timestamp, " ", 2)[0])
	}

	switch m.Kind {
	case chat.KindSystem:
		fmt.Printf("  * %s\n", m.Text)
		return
	case chat.KindSentOriginal, chat.KindSentTranslated:
		fmt.Printf("  you> %s%s\n", r.variantPrefix(m), m.Text)
	default:
		if m.ShowAvatar {
			fmt.Printf("%s:\n", m.Sender.Nickname)
		}
		fmt.Printf("  %s%s\n", r.variantPrefix(m), m.Text)
	}

	if m.ShowTimestamp {
		fmt.Printf("      [%s]\n", clockOf(m.Timestamp))
	}
}

func (r *renderer) variantPrefix(m chat.Message) string {
	if m.IsTranslated {
		return "(translated) "
	}
	return ""
}

func clockOf(timestamp string) string {
	parts := strings.SplitN(timestamp, " ", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return timestamp
}
