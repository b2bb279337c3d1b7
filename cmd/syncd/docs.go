package main

//go:generate swag init -g cmd/syncd/main.go -o docs

// @title           CRM Sync API
// @version         0.1.0
// @description     Integration sync runs, platform registry, and health monitoring.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
