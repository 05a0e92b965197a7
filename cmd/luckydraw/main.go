package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/minqi/luckydraw/internal/config"
	"github.com/minqi/luckydraw/internal/server"
)

const (
	configFlag = "config"
	dataFlag   = "data-dir"
	portFlag   = "port"
)

func main() {
	app := &cli.App{
		Name:  "luckydraw",
		Usage: "lottery draw engine and its HTTP shell",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage:   "path to a config file (optional, env vars override)",
				EnvVars: []string{"CONFIG_PATH"},
			},
			&cli.StringFlag{
				Name:    dataFlag,
				Usage:   "directory for the file storage backend",
				Value:   "data",
				EnvVars: []string{"DATA_DIR"},
			},
			&cli.IntFlag{
				Name:  portFlag,
				Usage: "HTTP port",
				Value: 8080,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	sc, err := loadConfig(c)
	if err != nil {
		return err
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

	s, err := server.Init(sc)
	if err != nil {
		return err
	}

	go s.Start()

	<-shutdown
	s.Shutdown()
	return nil
}

func loadConfig(c *cli.Context) (server.Config, error) {
	var sc server.Config
	sc.HTTP.Port = int32(c.Int(portFlag))
	sc.Storage.Backend = server.BackendFile
	sc.Storage.File.Dir = c.String(dataFlag)
	sc.Storage.Redis.Prefix = "luckydraw"

	if err := config.Load(c.String(configFlag), &sc); err != nil {
		return sc, err
	}

	return sc, nil
}
