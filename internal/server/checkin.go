package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"gymgate/internal/engine"
	"gymgate/internal/identity"
)

func registerCheckIn(api huma.API, e engine.Engine, ident identity.Resolver) {
	huma.Register(api, huma.Operation{
		OperationID: "check-in",
		Method:      http.MethodPost,
		Path:        "/check-in",
		Summary:     "Admit a person presenting a credential",
		Description: "Resolves the credential and decides admission. When more than one entitlement applies the response asks the person to choose; a follow-up call with discipline_id completes the round trip.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CheckInRequest `json:"body"`
	}) (*struct {
		Body CheckInResponse `json:"body"`
	}, error) {
		if input.Body.Credential == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "credential is required", nil)
		}
		hint := identity.Hint(input.Body.Credential)
		person, err := ident.Resolve(ctx, input.Body.Credential)
		if err != nil {
			if !errors.Is(err, identity.ErrNotFound) {
				return nil, handleError(err)
			}
			decision, err := e.DenyUnresolved(ctx, hint)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body CheckInResponse `json:"body"`
			}{Body: checkInResponse(decision)}, nil
		}
		decision, err := e.CheckIn(ctx, engine.CheckInOptions{
			PersonID:       person.ID,
			DisciplineID:   input.Body.DisciplineID,
			CredentialHint: hint,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CheckInResponse `json:"body"`
		}{Body: checkInResponse(decision)}, nil
	})
}

func registerTokens(api huma.API, e engine.Engine, ident identity.Resolver) {
	huma.Register(api, huma.Operation{
		OperationID:   "issue-token",
		Method:        http.MethodPost,
		Path:          "/tokens",
		Summary:       "Issue a rotating member token",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body IssueTokenRequest `json:"body"`
	}) (*struct {
		Body IssueTokenResponse `json:"body"`
	}, error) {
		if input.Body.PersonID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "person_id is required", nil)
		}
		person, err := e.Repo.GetPerson(ctx, input.Body.PersonID)
		if err != nil {
			return nil, handleError(err)
		}
		ttl := 10 * time.Minute
		if e.Config != nil && e.Config.Tokens.MemberTTLMinutes > 0 {
			ttl = e.Config.MemberTokenTTL()
		}
		token, err := ident.IssueToken(person.ID, ttl)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IssueTokenResponse `json:"body"`
		}{Body: IssueTokenResponse{
			Token:     token,
			ExpiresAt: time.Now().UTC().Add(ttl).Format(time.RFC3339),
		}}, nil
	})
}
