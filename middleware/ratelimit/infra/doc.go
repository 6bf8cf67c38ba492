// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - RedisCounterStore / MemoryCounterStore: backends de contadores com TTL
//   - WebhookAlerter: alertas de rejeição via webhook, com ThrottleStore
//     (golang.org/x/time/rate) e ChanPool limitando as entregas
//   - RedisStatsStore / MemoryStatsStore: estatísticas de decisões
package infra
