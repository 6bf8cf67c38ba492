// Package domain define contratos e tipos de domínio do rate limit de duas cotas
// (global + rota).
//
// Este pacote não depende de net/http nem de implementações concretas.
// CounterStore é o contrato do backend de contadores; Evaluation/Decision são o
// resultado da avaliação; Alerter e StatsStore são colaboradores externos.
package domain
