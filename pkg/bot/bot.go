package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campusride/config"
	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/pkg/socket"
	"campusride/service"

	tele "gopkg.in/telebot.v3"
)

const alertBuffer = 64

// sender is the part of *tele.Bot the alert worker needs.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier mirrors admin-targeted realtime events into a Telegram chat and
// answers a few read-only admin commands. It is an Emitter so it can sit
// next to the Hub in a socket.Fanout; everything not aimed at admins is
// dropped.
type Notifier struct {
	socket.Nop

	Bot  *tele.Bot
	Log  logger.ILogger
	Cfg  *config.Config
	Svc  service.IServiceManager
	send sender
	chat tele.ChatID

	alerts chan string
}

var _ socket.Emitter = (*Notifier)(nil)

func New(cfg *config.Config, log logger.ILogger) (*Notifier, error) {
	if cfg.AdminBotToken == "" {
		return nil, errors.New("admin bot token is empty")
	}

	pref := tele.Settings{
		Token:  cfg.AdminBotToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	n := newNotifier(b, cfg.AdminChatID, log)
	n.Bot = b
	n.Cfg = cfg
	return n, nil
}

func newNotifier(s sender, chatID int64, log logger.ILogger) *Notifier {
	return &Notifier{
		Log:    log,
		send:   s,
		chat:   tele.ChatID(chatID),
		alerts: make(chan string, alertBuffer),
	}
}

// Attach hands the services to the command handlers. Services are built
// with the notifier as one of their emitters, so this happens afterwards.
func (n *Notifier) Attach(svc service.IServiceManager) {
	n.Svc = svc
	if n.Bot != nil {
		n.registerHandlers()
	}
}

// Run polls for commands and delivers alerts until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	if n.Bot != nil {
		n.Log.Info("admin bot started", logger.Int64("chat", int64(n.chat)))
		go n.Bot.Start()
		defer n.Bot.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case text := <-n.alerts:
			n.deliver(text)
		}
	}
}

func (n *Notifier) deliver(text string) {
	if n.chat == 0 {
		return
	}
	if _, err := n.send.Send(n.chat, text); err != nil {
		n.Log.Error("failed to send admin alert", logger.Error(err))
	}
}

func (n *Notifier) enqueue(text string) {
	select {
	case n.alerts <- text:
	default:
		n.Log.Warning("admin alert dropped, buffer full")
	}
}

func (n *Notifier) EmitToRole(role, event string, payload any) {
	if role != models.RoleAdmin {
		return
	}
	n.alert(event, payload)
}

func (n *Notifier) EmitToRooms(rooms []string, event string, payload any) {
	adminRoom := socket.RoleRoom(models.RoleAdmin)
	for _, room := range rooms {
		if room == adminRoom {
			n.alert(event, payload)
			return
		}
	}
}

func (n *Notifier) alert(event string, payload any) {
	if text, ok := alertText(event, payload); ok {
		n.enqueue(text)
	}
}

func alertText(event string, payload any) (string, bool) {
	switch event {
	case models.EventComplaintNew:
		v, ok := payload.(*service.ComplaintView)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("📝 New complaint from %s\n\n%s", refName(v.Student), v.Text), true
	case models.EventComplaintStatusUpdated:
		v, ok := payload.(*service.ComplaintView)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("📝 Complaint %s from %s is now %s", shortID(v.ID), refName(v.Student), v.Status), true
	case models.EventTripStarted:
		p, ok := payload.(service.TripPayload)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("🚖 Trip %s started\nSeats: %d/%d", shortID(p.RideID), p.SeatsFilled, p.MaxSeats), true
	case models.EventRideFull:
		p, ok := payload.(service.RidePayload)
		if !ok || p.Ride == nil {
			return "", false
		}
		return fmt.Sprintf("✅ Ride %s is full\nDriver: %s", shortID(p.Ride.ID), refName(p.Ride.Driver)), true
	}
	return "", false
}

func refName(u *models.UserRef) string {
	if u == nil {
		return "Unknown"
	}
	return u.Name
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
