package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"gymgate/internal/domain"
	"gymgate/internal/engine"
	"gymgate/internal/repo"
)

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func registerPersons(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-person",
		Method:        http.MethodPost,
		Path:          "/persons",
		Summary:       "Register a person",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreatePersonRequest `json:"body"`
	}) (*struct {
		Body domain.Person `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		code := int64(0)
		if input.Body.Code != nil {
			code = *input.Body.Code
		} else {
			next, err := e.Repo.NextPersonCode(ctx)
			if err != nil {
				return nil, handleError(err)
			}
			code = next
		}
		p := domain.Person{
			ID:        uuid.New().String(),
			Code:      code,
			Name:      input.Body.Name,
			PhotoRef:  input.Body.PhotoRef,
			CreatedAt: nowRFC3339(),
		}
		if err := e.Repo.InsertPerson(ctx, p); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Person `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-persons",
		Method:      http.MethodGet,
		Path:        "/persons",
		Summary:     "List persons",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Person `json:"body"`
	}, error) {
		items, err := e.Repo.ListPersons(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Person `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-person",
		Method:      http.MethodGet,
		Path:        "/persons/{person_id}",
		Summary:     "Get person",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PersonID string `path:"person_id"`
	}) (*struct {
		Body domain.Person `json:"body"`
	}, error) {
		p, err := e.Repo.GetPerson(ctx, input.PersonID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Person `json:"body"`
		}{Body: p}, nil
	})
}

func registerCatalog(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-discipline",
		Method:        http.MethodPost,
		Path:          "/disciplines",
		Summary:       "Create discipline",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateDisciplineRequest `json:"body"`
	}) (*struct {
		Body domain.Discipline `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		d := domain.Discipline{
			ID:                  uuid.New().String(),
			Name:                input.Body.Name,
			RequiresReservation: input.Body.RequiresReservation,
		}
		if err := e.Repo.InsertDiscipline(ctx, d); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Discipline `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-disciplines",
		Method:      http.MethodGet,
		Path:        "/disciplines",
		Summary:     "List disciplines",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Discipline `json:"body"`
	}, error) {
		items, err := e.Repo.ListDisciplines(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Discipline `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-plan",
		Method:        http.MethodPost,
		Path:          "/plans",
		Summary:       "Create plan",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreatePlanRequest `json:"body"`
	}) (*struct {
		Body domain.Plan `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if input.Body.ValidDays <= 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "valid_days must be positive", nil)
		}
		if _, err := e.Repo.GetDiscipline(ctx, input.Body.DisciplineID); err != nil {
			return nil, handleError(err)
		}
		p := domain.Plan{
			ID:           uuid.New().String(),
			Name:         input.Body.Name,
			DisciplineID: input.Body.DisciplineID,
			Credits:      input.Body.Credits,
			ValidDays:    input.Body.ValidDays,
		}
		if err := e.Repo.InsertPlan(ctx, p); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Plan `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-plans",
		Method:      http.MethodGet,
		Path:        "/plans",
		Summary:     "List plans",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Plan `json:"body"`
	}, error) {
		items, err := e.Repo.ListPlans(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Plan `json:"body"`
		}{Body: items}, nil
	})
}

func registerClasses(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-class",
		Method:        http.MethodPost,
		Path:          "/classes",
		Summary:       "Create class",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateClassRequest `json:"body"`
	}) (*struct {
		Body domain.Class `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		for _, ts := range []string{input.Body.StartsAt, input.Body.EndsAt} {
			if _, err := time.Parse(time.RFC3339, ts); err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid RFC3339 time %q", ts), nil)
			}
		}
		if _, err := e.Repo.GetDiscipline(ctx, input.Body.DisciplineID); err != nil {
			return nil, handleError(err)
		}
		c := domain.Class{
			ID:           uuid.New().String(),
			DisciplineID: input.Body.DisciplineID,
			Name:         input.Body.Name,
			StartsAt:     input.Body.StartsAt,
			EndsAt:       input.Body.EndsAt,
			Capacity:     input.Body.Capacity,
		}
		if err := e.Repo.InsertClass(ctx, c); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Class `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-classes",
		Method:      http.MethodGet,
		Path:        "/classes",
		Summary:     "List classes",
	}, func(ctx context.Context, input *struct {
		DisciplineID string `query:"discipline_id"`
		From         string `query:"from"`
		To           string `query:"to"`
		Limit        int    `query:"limit"`
	}) (*struct {
		Body []domain.Class `json:"body"`
	}, error) {
		items, err := e.Repo.ListClasses(ctx, repo.ClassFilters{
			DisciplineID: input.DisciplineID,
			From:         input.From,
			To:           input.To,
			Limit:        input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Class `json:"body"`
		}{Body: items}, nil
	})
}

func registerReservations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-reservation",
		Method:        http.MethodPost,
		Path:          "/reservations",
		Summary:       "Book a class",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateReservationRequest `json:"body"`
	}) (*struct {
		Body domain.Reservation `json:"body"`
	}, error) {
		if _, err := e.Repo.GetPerson(ctx, input.Body.PersonID); err != nil {
			return nil, handleError(err)
		}
		class, err := e.Repo.GetClass(ctx, input.Body.ClassID)
		if err != nil {
			return nil, handleError(err)
		}
		if class.Capacity > 0 {
			booked, err := e.Repo.CountActiveReservations(ctx, class.ID)
			if err != nil {
				return nil, handleError(err)
			}
			if booked >= class.Capacity {
				return nil, newAPIError(http.StatusConflict, "class_full", "class is at capacity", nil)
			}
		}
		r := domain.Reservation{
			ID:        uuid.New().String(),
			PersonID:  input.Body.PersonID,
			ClassID:   input.Body.ClassID,
			Status:    domain.ReservationActive,
			CreatedAt: nowRFC3339(),
		}
		if err := e.Repo.InsertReservation(ctx, r); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Reservation `json:"body"`
		}{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-reservation",
		Method:      http.MethodDelete,
		Path:        "/reservations/{reservation_id}",
		Summary:     "Cancel a reservation",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ReservationID string `path:"reservation_id"`
	}) (*struct{}, error) {
		if err := e.Repo.CancelReservation(ctx, input.ReservationID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerMemberships(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-membership",
		Method:        http.MethodPost,
		Path:          "/memberships",
		Summary:       "Assign a plan to a person",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateMembershipRequest `json:"body"`
	}) (*struct {
		Body domain.Membership `json:"body"`
	}, error) {
		if _, err := e.Repo.GetPerson(ctx, input.Body.PersonID); err != nil {
			return nil, handleError(err)
		}
		plan, err := e.Repo.GetPlan(ctx, input.Body.PlanID)
		if err != nil {
			return nil, handleError(err)
		}
		now := time.Now().UTC()
		m := domain.Membership{
			ID:           uuid.New().String(),
			PersonID:     input.Body.PersonID,
			PlanID:       plan.ID,
			DisciplineID: plan.DisciplineID,
			Status:       domain.MembershipActive,
			ExpiresAt:    now.AddDate(0, 0, plan.ValidDays).Format(time.RFC3339),
			CreatedAt:    now.Format(time.RFC3339),
		}
		if plan.Credits == nil {
			m.IsUnlimited = true
		} else {
			m.RemainingCredits = *plan.Credits
		}
		if err := e.Repo.InsertMembership(ctx, m); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Membership `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-person-memberships",
		Method:      http.MethodGet,
		Path:        "/persons/{person_id}/memberships",
		Summary:     "List a person's memberships",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PersonID string `path:"person_id"`
	}) (*struct {
		Body []domain.Membership `json:"body"`
	}, error) {
		if _, err := e.Repo.GetPerson(ctx, input.PersonID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListMembershipsForPerson(ctx, input.PersonID)
		if err != nil {
			return nil, handleError(err)
		}
		memberships := make([]domain.Membership, 0, len(items))
		for _, mc := range items {
			memberships = append(memberships, mc.Membership)
		}
		return &struct {
			Body []domain.Membership `json:"body"`
		}{Body: memberships}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-person-reservations",
		Method:      http.MethodGet,
		Path:        "/persons/{person_id}/reservations",
		Summary:     "List a person's reservations",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PersonID string `path:"person_id"`
	}) (*struct {
		Body []domain.Reservation `json:"body"`
	}, error) {
		if _, err := e.Repo.GetPerson(ctx, input.PersonID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListReservationsForPerson(ctx, input.PersonID)
		if err != nil {
			return nil, handleError(err)
		}
		reservations := make([]domain.Reservation, 0, len(items))
		for _, rc := range items {
			reservations = append(reservations, rc.Reservation)
		}
		return &struct {
			Body []domain.Reservation `json:"body"`
		}{Body: reservations}, nil
	})
}

func registerAttendance(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-attendance",
		Method:      http.MethodGet,
		Path:        "/attendance",
		Summary:     "List attendance facts",
	}, func(ctx context.Context, input *struct {
		PersonID     string `query:"person_id"`
		DisciplineID string `query:"discipline_id"`
		Kind         string `query:"kind"`
		Limit        int    `query:"limit"`
	}) (*struct {
		Body []domain.Attendance `json:"body"`
	}, error) {
		items, err := e.Repo.ListAttendance(ctx, repo.AttendanceFilters{
			PersonID:     input.PersonID,
			DisciplineID: input.DisciplineID,
			Kind:         input.Kind,
			Limit:        input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Attendance `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-access-log",
		Method:      http.MethodGet,
		Path:        "/access-log",
		Summary:     "List admission attempt audit rows",
	}, func(ctx context.Context, input *struct {
		PersonID string `query:"person_id"`
		Limit    int    `query:"limit"`
		Cursor   int64  `query:"cursor"`
	}) (*struct {
		Body []domain.AccessLogEntry `json:"body"`
	}, error) {
		items, err := e.Repo.LatestAccessLog(ctx, input.Limit, input.Cursor, input.PersonID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.AccessLogEntry `json:"body"`
		}{Body: items}, nil
	})
}
