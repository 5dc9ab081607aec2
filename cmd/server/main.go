package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
	"github.com/dmitrijs2005/cashkeeper/internal/server"
	"github.com/dmitrijs2005/cashkeeper/internal/server/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		if errors.Is(err, common.ErrConfiguration) {
			log.Printf("configuration error, refusing to start: %v", err)
		} else {
			log.Printf("startup failed: %v", err)
		}
		os.Exit(1)
	}

	if path := config.RotateMasterKeyFlag(); path != "" {
		n, err := app.RotateMasterKey(ctx, path)
		if err != nil {
			log.Printf("master key rotation failed: %v", err)
			os.Exit(1)
		}
		log.Printf("master key rotated, %d credentials re-encrypted; update the master key secret before restarting", n)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
