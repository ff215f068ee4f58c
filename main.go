package main

import (
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"SpareLink/Config"
	"SpareLink/CronJobs"
	"SpareLink/FiberConfig"
	"SpareLink/Models"
	"SpareLink/Slack"
	"SpareLink/email"
)

func main() {
	cfg := Config.Load()
	setupLogging(cfg.LogDir)

	db, err := Models.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	services := FiberConfig.NewServices(db, cfg)

	monitor := CronJobs.NewTATMonitor(services.Calls, cfg.TATCheckSchedule, true)
	if notifier := Slack.NewBreachNotifier(cfg.SlackBotToken, cfg.SlackChannel); notifier != nil {
		monitor.AddNotifier(notifier)
	}
	smtp := Models.EmailConfig{
		SMTPServer:   cfg.SMTP.Server,
		SMTPPort:     cfg.SMTP.Port,
		Username:     cfg.SMTP.Username,
		Password:     cfg.SMTP.Password,
		FromEmail:    cfg.SMTP.FromEmail,
		FromName:     cfg.SMTP.FromName,
		TLSEnabled:   cfg.SMTP.TLSEnabled,
		SkipTLSCheck: cfg.SMTP.SkipTLSCheck,
	}
	if mailer := email.NewBreachMailer(smtp, cfg.AlertEmails); mailer != nil {
		monitor.AddNotifier(mailer)
	}
	if err := monitor.Start(); err != nil {
		log.Printf("Failed to start TAT monitor: %v", err)
	} else {
		defer monitor.Stop()
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")
		monitor.Stop()
		os.Exit(0)
	}()

	if err := FiberConfig.FiberConfig(db, cfg, services); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

func setupLogging(dir string) {
	// Create logs directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Error creating logs directory: %v\n", err)
		return
	}

	logFile, err := os.OpenFile(filepath.Join(dir, "application.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Printf("Error opening log file: %v\n", err)
		return
	}

	log.SetOutput(io.MultiWriter(os.Stdout, logFile))
	log.SetFlags(log.Ldate | log.Ltime)
}
