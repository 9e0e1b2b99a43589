package tgbot

import (
	"log/slog"

	"github.com/nthewara88agent/stock-tracker/config"
	"github.com/nthewara88agent/stock-tracker/internal/transport/telegram"
	customMW "github.com/nthewara88agent/stock-tracker/internal/transport/telegram/middleware"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type TGBot struct {
	bot  *tele.Bot
	ctrl *telegram.Controller
}

func New(cfg *config.Config, ctrl *telegram.Controller) *TGBot {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
		OnError: func(err error, c tele.Context) {
			slog.Error("tgbot handler error", slog.String("err", err.Error()))
		},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		panic(err)
	}

	return &TGBot{bot: b, ctrl: ctrl}
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.Logger())

	b.setupRoutes()

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

func (b *TGBot) setupRoutes() {
	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/add", b.ctrl.AddHolding)
	b.bot.Handle("/remove", b.ctrl.RemoveHolding)
	b.bot.Handle("/holdings", b.ctrl.Holdings)
	b.bot.Handle("/summary", b.ctrl.Summary)
	b.bot.Handle("/cgt", b.ctrl.Cgt)
	b.bot.Handle("/report", b.ctrl.Report)

	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		return c.Send("unknown command, send /start for help")
	})
}
