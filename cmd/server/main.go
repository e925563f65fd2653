package main

import (
	"context"
	"flag"
	"log/syslog"
	"os"
	"os/signal"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/moneta-app/moneta"
	"github.com/moneta-app/moneta/auth"
	"github.com/moneta-app/moneta/persistent"
	"github.com/moneta-app/moneta/token"
	"github.com/moneta-app/moneta/transport/rest"
	"github.com/sirupsen/logrus"
	logrusys "github.com/sirupsen/logrus/hooks/syslog"
	"github.com/tidwall/buntdb"
	"github.com/uptrace/bun"
	_ "github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

func listenAndServe(
	ctx context.Context,
	bdb *buntdb.DB,
	db *bun.DB,
	tokenConfig token.Config,
	debug bool,
) func() error {
	userStore := &persistent.UserStore{DB: db}
	activityStore := &persistent.ActivityStore{DB: db}
	sessionStore := &persistent.SessionStore{Buntdb: bdb}
	revocationStore := &persistent.RevocationStore{Buntdb: bdb}

	authService := &auth.Service{
		Tokens:     &token.Service{Config: tokenConfig},
		Sessions:   sessionStore,
		Revoked:    revocationStore,
		Users:      userStore,
		Mailer:     logMailer{},
		Activities: activityStore,
	}

	authController := rest.AuthController{Service: authService}
	userController := rest.UserController{Service: authService, Users: userStore}
	sessionController := rest.SessionController{Store: sessionStore}
	activityController := rest.ActivityController{Store: activityStore}

	server := fiber.New()
	server.Use(rest.LogHandler())

	api := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorHandler: rest.ErrorHandler,
	})

	allowOrigins := "https://moneta.app"
	if debug {
		allowOrigins += ", http://localhost:3000"
	}
	api.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowCredentials: true,
	}))

	requestAuthorizer := rest.RequestAuthorizer(authService)
	api.Get("/status", monitor.New())
	authController.InstallTo(api)
	userController.InstallTo(requestAuthorizer, api)
	sessionController.InstallTo(requestAuthorizer, api)
	activityController.InstallTo(requestAuthorizer, api)

	server.Mount("/api/", api)
	server.Use(rest.NotFoundHandler)

	var addr string
	if debug {
		addr = "127.0.0.1:2137"
	} else {
		addr = ":2137"
	}
	go server.Listen(addr)

	return func() error {
		return server.Shutdown()
	}
}

// runSweeper drops expired sessions and revocation entries once a day. The
// stores sweep lazily per user on access; this pass catches keys nothing
// touched.
func runSweeper(ctx context.Context, sessions moneta.SessionStore, revoked moneta.RevocationStore) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		removed, err := sessions.SweepExpired(ctx)
		if err != nil {
			logrus.WithError(err).Warnln("Session sweep failed.")
			continue
		}
		revokedRemoved, err := revoked.SweepExpired(ctx)
		if err != nil {
			logrus.WithError(err).Warnln("Revocation sweep failed.")
			continue
		}
		logrus.
			WithField("sessions", removed).
			WithField("revocations", revokedRemoved).
			Infoln("Swept expired entries.")
	}
}

// logMailer stands in for outbound email delivery.
type logMailer struct{}

func (logMailer) SendEmailVerification(ctx context.Context, to moneta.Email, token string) error {
	logrus.WithField("to", to).Infoln("Email verification token issued.")
	return nil
}

func (logMailer) SendPasswordReset(ctx context.Context, to moneta.Email, token string) error {
	logrus.WithField("to", to).Infoln("Password reset token issued.")
	return nil
}

func setupLogger(verbose bool) {
	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: time.Stamp,
		FullTimestamp:   true,
	})
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	syslogHook, err := logrusys.NewSyslogHook("", "", syslog.LOG_USER, "moneta_backend")
	if err != nil {
		logrus.WithError(err).Fatalln("Could not create syslog hook.")
		return
	}
	logrus.AddHook(syslogHook)
}

func requireEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		logrus.Fatalln(key + " not set!")
	}
	return value
}

func tokenConfigFromEnv() token.Config {
	return token.Config{
		AccessSecret:            []byte(requireEnv("ACCESS_TOKEN_SECRET")),
		RefreshSecret:           []byte(requireEnv("REFRESH_TOKEN_SECRET")),
		EmailVerificationSecret: []byte(requireEnv("EMAIL_VERIFICATION_TOKEN_SECRET")),
		PasswordResetSecret:     []byte(requireEnv("PASSWORD_RESET_TOKEN_SECRET")),
	}
}

func awaitInterruption() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
}

func main() {
	flag.Parse()
	debug := os.Getenv("DEBUG") == "true"
	setupLogger(debug)
	logrus.Infoln("Starting backend.")

	pgDsn := requireEnv("POSTGRES_DSN")
	tokenConfig := tokenConfigFromEnv()

	bdb, err := buntdb.Open("kv.db")
	if err != nil {
		logrus.WithError(err).Fatalln("Could not open buntdb.")
	}
	defer bdb.Close()

	logrus.Infoln("Opening database.")
	pg := persistent.PgOpen(context.Background(), pgDsn)
	if debug {
		pg.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	defer pg.Close()

	sweeperCtx, cancelSweeper := context.WithCancel(context.Background())
	go runSweeper(sweeperCtx,
		&persistent.SessionStore{Buntdb: bdb},
		&persistent.RevocationStore{Buntdb: bdb})

	logrus.Infoln("Starting listening... To shut down use ^C")
	shutdown := listenAndServe(context.Background(), bdb, pg, tokenConfig, debug)

	awaitInterruption()

	logrus.Infoln("Shutting down...")
	cancelSweeper()
	err = shutdown()
	if err != nil {
		logrus.WithError(err).Warningln("Fiber shutdown failed.")
	}
	logrus.Exit(0)
}
