package bot

import (
	"context"
	"fmt"
	"strings"

	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/service"

	tele "gopkg.in/telebot.v3"
)

const (
	btnStats      = "📊 Stats"
	btnQueue      = "🚦 Queue"
	btnComplaints = "📝 Complaints"

	listLimit = 10
)

func (n *Notifier) registerHandlers() {
	n.Bot.Use(n.onlyAdminChat)

	n.Bot.Handle("/start", n.handleStart)
	n.Bot.Handle("/stats", n.handleStats)
	n.Bot.Handle(btnStats, n.handleStats)
	n.Bot.Handle("/queue", n.handleQueue)
	n.Bot.Handle(btnQueue, n.handleQueue)
	n.Bot.Handle("/complaints", n.handleComplaints)
	n.Bot.Handle(btnComplaints, n.handleComplaints)
}

func (n *Notifier) onlyAdminChat(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Chat() == nil || c.Chat().ID != int64(n.chat) {
			return c.Send("🚫 This bot only answers the campus ride admin chat.")
		}
		return next(c)
	}
}

func (n *Notifier) handleStart(c tele.Context) error {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	menu.Reply(
		menu.Row(menu.Text(btnStats), menu.Text(btnQueue)),
		menu.Row(menu.Text(btnComplaints)),
	)
	return c.Send("🛠 Campus ride admin alerts are on.", menu)
}

func (n *Notifier) handleStats(c tele.Context) error {
	return n.reply(c, n.statsText)
}

func (n *Notifier) handleQueue(c tele.Context) error {
	return n.reply(c, n.queueText)
}

func (n *Notifier) handleComplaints(c tele.Context) error {
	return n.reply(c, n.complaintsText)
}

func (n *Notifier) reply(c tele.Context, build func(ctx context.Context) (string, error)) error {
	text, err := build(context.Background())
	if err != nil {
		n.Log.Error("failed to build admin reply", logger.Error(err))
		return c.Send("⚠️ Something went wrong, try again later.")
	}
	return c.Send(text)
}

func (n *Notifier) statsText(ctx context.Context) (string, error) {
	stats, err := n.Svc.Queue().GetAdminStats(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("📊 STATISTICS\n\nStudents: %d\nDrivers: %d\nIn queue: %d\nComplaints: %d",
		stats.Students, stats.Drivers, stats.ActiveQueue, stats.Complaints), nil
}

func (n *Notifier) queueText(ctx context.Context) (string, error) {
	overview, err := n.Svc.Queue().GetAdminQueueOverview(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🚦 Waiting: %d\n", len(overview.WaitingQueue))
	for i, item := range overview.WaitingQueue {
		if i == listLimit {
			fmt.Fprintf(&sb, "… and %d more\n", len(overview.WaitingQueue)-listLimit)
			break
		}
		fmt.Fprintf(&sb, "%d. %s: %s ➡️ %s\n", item.Position, refName(item.Student), item.Pickup, item.Destination)
	}

	fmt.Fprintf(&sb, "\n🚖 Active rides: %d\n", len(overview.ActiveRides))
	for _, ride := range overview.ActiveRides {
		fmt.Fprintf(&sb, "%s %s: %d/%d seats, driver %s\n",
			shortID(ride.ID), ride.Status, ride.SeatsFilled, ride.MaxSeats, refName(ride.Driver))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (n *Notifier) complaintsText(ctx context.Context) (string, error) {
	all, err := n.Svc.Complaint().ListAll(ctx)
	if err != nil {
		return "", err
	}

	open := make([]service.ComplaintView, 0, len(all))
	for _, c := range all {
		if c.Status == models.ComplaintStatusSubmitted || c.Status == models.ComplaintStatusInReview {
			open = append(open, c)
		}
	}
	if len(open) == 0 {
		return "📭 No open complaints.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 Open complaints: %d\n", len(open))
	for i, c := range open {
		if i == listLimit {
			break
		}
		fmt.Fprintf(&sb, "\n%s [%s] %s: %s", shortID(c.ID), c.Status, refName(c.Student), c.Text)
	}
	return sb.String(), nil
}
