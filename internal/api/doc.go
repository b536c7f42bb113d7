// Package api — HTTP API для управления pipelines и executions.
//
// REST-маршруты построены на net/http ServeMux (Go 1.22 method
// patterns) с middleware chain для recovery и логирования запросов.
// Ошибки доменного слоя маппятся в HTTP-статусы в HandleError.
// Поток событий оркестратора доступен по WebSocket.
package api
