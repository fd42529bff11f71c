package domain

// Person is a registered member. Identity records are owned by the admin
// flows; the check-in engine only reads them.
type Person struct {
	ID        string `json:"id"`
	Code      int64  `json:"code"`
	Name      string `json:"name"`
	PhotoRef  string `json:"photo_ref,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Discipline is an activity category. RequiresReservation decides whether
// entry needs a booked class or goes directly against a membership.
type Discipline struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	RequiresReservation bool   `json:"requires_reservation"`
}

// Plan is a purchasable entitlement template for one discipline.
// Credits nil means unlimited.
type Plan struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DisciplineID string `json:"discipline_id"`
	Credits      *int   `json:"credits,omitempty"`
	ValidDays    int    `json:"valid_days"`
}

type Class struct {
	ID           string `json:"id"`
	DisciplineID string `json:"discipline_id"`
	Name         string `json:"name"`
	StartsAt     string `json:"starts_at" format:"date-time"`
	EndsAt       string `json:"ends_at" format:"date-time"`
	Capacity     int    `json:"capacity"`
}

const (
	ReservationActive    = "ACTIVE"
	ReservationAttended  = "ATTENDED"
	ReservationCancelled = "CANCELLED"
	ReservationNoShow    = "NO_SHOW"
)

type Reservation struct {
	ID        string `json:"id"`
	PersonID  string `json:"person_id"`
	ClassID   string `json:"class_id"`
	Status    string `json:"status" enum:"ACTIVE,ATTENDED,CANCELLED,NO_SHOW"`
	Attended  bool   `json:"attended"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

const (
	MembershipActive    = "ACTIVE"
	MembershipExpired   = "EXPIRED"
	MembershipSuspended = "SUSPENDED"
)

type Membership struct {
	ID               string `json:"id"`
	PersonID         string `json:"person_id"`
	PlanID           string `json:"plan_id"`
	DisciplineID     string `json:"discipline_id"`
	RemainingCredits int    `json:"remaining_credits"`
	IsUnlimited      bool   `json:"is_unlimited"`
	Status           string `json:"status" enum:"ACTIVE,EXPIRED,SUSPENDED"`
	ExpiresAt        string `json:"expires_at" format:"date-time"`
	CreatedAt        string `json:"created_at" format:"date-time"`
}

const (
	AttendanceReservation  = "reservation"
	AttendanceDirectAccess = "direct_access"
)

// Attendance is an append-only fact recorded once per successful check-in.
type Attendance struct {
	ID            string  `json:"id"`
	PersonID      string  `json:"person_id"`
	DisciplineID  string  `json:"discipline_id"`
	MembershipID  *string `json:"membership_id,omitempty"`
	ReservationID *string `json:"reservation_id,omitempty"`
	Kind          string  `json:"kind" enum:"reservation,direct_access"`
	TS            string  `json:"ts" format:"date-time"`
}

// AccessLogEntry is one audit row per admission attempt outcome.
type AccessLogEntry struct {
	ID             int64  `json:"id"`
	TS             string `json:"ts" format:"date-time"`
	PersonID       string `json:"person_id,omitempty"`
	CredentialHint string `json:"credential_hint,omitempty"`
	Outcome        string `json:"outcome" enum:"granted,denied"`
	Reason         string `json:"reason,omitempty"`
	Discipline     string `json:"discipline,omitempty"`
	Detail         string `json:"detail,omitempty"`
}

type APIKey struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
