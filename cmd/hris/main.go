package main

import (
	"os"

	_ "github.com/noah-isme/hris-api/api/swagger"
	"github.com/noah-isme/hris-api/cmd/hris/commands"
)

// @title HRIS API
// @version 1.0.0
// @description Approval workflows for benefits, personnel actions, assets and helpdesk tickets.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
