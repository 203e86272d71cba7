package http

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/account-service/internal/account"
)

// exchange is the per-request state threaded through a route's checks.
type exchange struct {
	w        http.ResponseWriter
	r        *http.Request
	username string
	password string
	account  *account.Account
	create   CreateAccountRequest
	update   UpdateAccountRequest
}

// check inspects the request and returns 0 to continue, or the status code
// that ends the request with an empty body.
type check struct {
	name string
	run  func(ex *exchange) int
}

// pipeline runs its checks strictly in order and hands the request to serve
// only if every check passed.
type pipeline struct {
	route  string
	checks []check
	serve  func(ex *exchange)
}

func (p pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ex := &exchange{w: w, r: r}
	for _, c := range p.checks {
		if status := c.run(ex); status != 0 {
			log.Debug().Str("route", p.route).Str("check", c.name).Int("status", status).Msg("Request stopped by check")
			respondWithStatus(w, status)
			return
		}
	}
	p.serve(ex)
}

func (p pipeline) checkNames() []string {
	names := make([]string, len(p.checks))
	for i, c := range p.checks {
		names[i] = c.name
	}
	return names
}

func allowMethod(method string) check {
	return check{
		name: "method",
		run: func(ex *exchange) int {
			if ex.r.Method != method {
				log.Warn().Str("method", ex.r.Method).Str("path", ex.r.URL.Path).Msg("API method not allowed")
				return http.StatusMethodNotAllowed
			}
			return 0
		},
	}
}

var rejectPayload = check{
	name: "payload",
	run: func(ex *exchange) int {
		present, err := hasPayload(ex.r)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read request body")
			return http.StatusBadRequest
		}
		if present {
			log.Warn().
				Str("path", ex.r.URL.Path).
				Int("query_params", len(ex.r.URL.Query())).
				Msg("Request contains some payload")
			return http.StatusBadRequest
		}
		return 0
	},
}
