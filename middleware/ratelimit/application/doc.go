// Package application contém os casos de uso do rate limit de duas cotas.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Evaluate(ctx, req) retorna uma Evaluation (admitido/rejeitado +
// campos de header das duas cotas). Policy resolve os limites por API key.
package application
