package main

import (
	"log"

	"kooperatif-backend/internal/config"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/router"
)

func main() {
	cfg := config.Load()
	database.Init(cfg)

	app := router.New(cfg)

	log.Println("Server çalışıyor port:", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
