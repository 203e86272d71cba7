package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/account-service/internal/account"
)

type CreateAccountRequest struct {
	FirstName string `json:"first_name" validate:"required,notblank,max=255"`
	LastName  string `json:"last_name" validate:"required,notblank,max=255"`
	Username  string `json:"username" validate:"required,email,max=320"`
	Password  string `json:"password" validate:"required,notblank,max=72"`
}

// UpdateAccountRequest holds the fields a client may send on update. Absent
// fields stay nil. Server-owned fields are not decoded at all.
type UpdateAccountRequest struct {
	FirstName *string `json:"first_name" validate:"omitnil,notblank,max=255"`
	LastName  *string `json:"last_name" validate:"omitnil,notblank,max=255"`
	Password  *string `json:"password" validate:"omitnil,notblank,max=72"`
	Username  *string `json:"username"`
}

type AccountResponse struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Username       string    `json:"username"`
	IsVerified     bool      `json:"is_verified"`
	AccountCreated time.Time `json:"account_created"`
	AccountUpdated time.Time `json:"account_updated"`
}

func newAccountResponse(a *account.Account) AccountResponse {
	return AccountResponse{
		ID:             a.ID,
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		Username:       a.Username,
		IsVerified:     a.IsVerified,
		AccountCreated: a.CreatedAt,
		AccountUpdated: a.UpdatedAt,
	}
}

type AccountHandler struct {
	service  account.Service
	validate *validator.Validate
}

func NewAccountHandler(service account.Service) *AccountHandler {
	validate := validator.New()
	if err := validate.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return &AccountHandler{
		service:  service,
		validate: validate,
	}
}

func (h *AccountHandler) RegisterRoutes(router chi.Router) {
	router.Method(http.MethodPost, "/v1/user", h.createPipeline())
	router.Method(http.MethodGet, "/v1/user/self", h.getSelfPipeline())
	router.Method(http.MethodPut, "/v1/user/self", h.updateSelfPipeline())
}

// Account creation is open: any Authorization header is ignored.
func (h *AccountHandler) createPipeline() pipeline {
	return pipeline{
		route:  "/v1/user",
		checks: []check{allowMethod(http.MethodPost), {name: "create-payload", run: h.decodeCreate}},
		serve:  h.handleCreateAccount,
	}
}

// Absent or malformed credentials are rejected before the payload is looked
// at. The credentials themselves are verified only once the payload is known
// to be acceptable.
func (h *AccountHandler) getSelfPipeline() pipeline {
	return pipeline{
		route: "/v1/user/self",
		checks: []check{
			allowMethod(http.MethodGet),
			requireCredentials,
			rejectPayload,
			{name: "authenticate", run: h.authenticate},
		},
		serve: h.handleGetSelf,
	}
}

func (h *AccountHandler) updateSelfPipeline() pipeline {
	return pipeline{
		route: "/v1/user/self",
		checks: []check{
			allowMethod(http.MethodPut),
			requireCredentials,
			{name: "update-payload", run: h.decodeUpdate},
			{name: "authenticate", run: h.authenticate},
		},
		serve: h.handleUpdateSelf,
	}
}

var requireCredentials = check{
	name: "credentials",
	run: func(ex *exchange) int {
		username, password, ok := ex.r.BasicAuth()
		if !ok {
			log.Warn().Str("path", ex.r.URL.Path).Msg("Missing or malformed basic auth credentials")
			ex.w.Header().Set("WWW-Authenticate", `Basic realm="account-service"`)
			return http.StatusUnauthorized
		}
		ex.username, ex.password = username, password
		return 0
	},
}

func (h *AccountHandler) authenticate(ex *exchange) int {
	a, err := h.service.Authenticate(ex.r.Context(), ex.username, ex.password)
	if err != nil {
		status := mapErrorToStatusCode(err)
		if status == http.StatusUnauthorized {
			log.Warn().Str("path", ex.r.URL.Path).Msg("Invalid credentials")
			ex.w.Header().Set("WWW-Authenticate", `Basic realm="account-service"`)
		} else {
			log.Error().Err(err).Msg("Failed to verify credentials via service")
		}
		return status
	}

	ex.account = a
	return 0
}

func (h *AccountHandler) decodeCreate(ex *exchange) int {
	if err := decodeJSON(ex.r, &ex.create); err != nil {
		log.Warn().Err(err).Msg("Failed to decode request body")
		return http.StatusBadRequest
	}
	ex.create.Username = account.NormalizeUsername(ex.create.Username)

	if err := h.validate.Struct(ex.create); err != nil {
		log.Warn().Err(err).Msg("Create payload failed validation")
		return http.StatusBadRequest
	}
	return 0
}

func (h *AccountHandler) decodeUpdate(ex *exchange) int {
	if err := decodeJSON(ex.r, &ex.update); err != nil {
		log.Warn().Err(err).Msg("Failed to decode request body")
		return http.StatusBadRequest
	}

	if err := h.validate.Struct(ex.update); err != nil {
		log.Warn().Err(err).Msg("Update payload failed validation")
		return http.StatusBadRequest
	}
	return 0
}

func (h *AccountHandler) handleCreateAccount(ex *exchange) {
	created, err := h.service.CreateAccount(ex.r.Context(), account.CreateInput{
		FirstName: ex.create.FirstName,
		LastName:  ex.create.LastName,
		Username:  ex.create.Username,
		Password:  ex.create.Password,
	})
	if err != nil {
		if errors.Is(err, account.ErrUsernameExists) {
			log.Warn().Msg("Account with this username already exists")
		} else {
			log.Error().Err(err).Msg("Failed to create account via service")
		}
		respondWithStatus(ex.w, mapErrorToStatusCode(err))
		return
	}

	log.Info().Str("account_id", created.ID.String()).Msg("Account created")
	respondWithJSON(ex.w, http.StatusCreated, newAccountResponse(created))
}

func (h *AccountHandler) handleGetSelf(ex *exchange) {
	respondWithJSON(ex.w, http.StatusOK, newAccountResponse(ex.account))
}

func (h *AccountHandler) handleUpdateSelf(ex *exchange) {
	err := h.service.UpdateAccount(ex.r.Context(), ex.account, account.UpdateInput{
		FirstName: ex.update.FirstName,
		LastName:  ex.update.LastName,
		Password:  ex.update.Password,
		Username:  ex.update.Username,
	})
	if err != nil {
		status := mapErrorToStatusCode(err)
		if status == http.StatusBadRequest {
			log.Warn().Err(err).Str("account_id", ex.account.ID.String()).Msg("Rejected account update")
		} else {
			log.Error().Err(err).Str("account_id", ex.account.ID.String()).Msg("Failed to update account via service")
		}
		respondWithStatus(ex.w, status)
		return
	}

	log.Info().Str("account_id", ex.account.ID.String()).Msg("Account updated")
	respondWithStatus(ex.w, http.StatusNoContent)
}
