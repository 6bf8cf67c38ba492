// Package ratelimit é o adapter HTTP (net/http) do rate limit de duas cotas.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: Service.Evaluate (rota, depois global, com restore) e Policy (tiers por API key)
//   - infra: Counter Stores (Redis e memória), alertas, stats
//   - ratelimit (este pacote): extração de identidade/domínio/rota + tradução para headers/status
//
// Fluxo no gateway:
//
//  1. Resolve os limites pela API key (Authorization ou ?_auth); chave ilimitada passa direto
//  2. Extrai IP, domínio normalizado e path
//  3. Chama Service.Evaluate
//  4. Escreve X-RateLimit-* e X-RateLimit-Global-*
//  5. Se rejeitado, responde 429 com Retry-After e o corpo JSON (code 1000 rota, 1001 global)
//
// Erro do Counter Store vira 500 e é logado aqui.
package ratelimit
