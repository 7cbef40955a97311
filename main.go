package main

import (
	"github.com/joho/godotenv"

	"github.com/KaramelBytes/tabsight/cmd"
)

func main() {
	// optional .env with TABSIGHT_* overrides
	_ = godotenv.Load()
	cmd.Execute()
}
