package backend

// Wire types for the external clinic REST backend. Dates and times on visits
// arrive as loosely formatted strings (legacy data entered by hand, sometimes
// with Arabic-Indic digits); parsing and normalization happen in the visit
// domain, not here.

// Patient is the backend's patient record. Read-only from this service
// except for its sub-resources.
type Patient struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Age            int       `json:"age,omitempty"`
	Address        string    `json:"address,omitempty"`
	RegisteredDate string    `json:"registered_date,omitempty"`
	Visits         []Visit   `json:"visits,omitempty"`
	Receipts       []Receipt `json:"receipts,omitempty"` // legacy direct shape
}

// Visit belongs to exactly one patient. Date and Time are loose strings.
type Visit struct {
	ID        int64     `json:"id"`
	PatientID int64     `json:"patient_id"`
	Date      string    `json:"date"`
	Time      string    `json:"time,omitempty"`
	VisitType string    `json:"visit_type,omitempty"`
	Complaint string    `json:"complaint,omitempty"`
	Diagnosis string    `json:"diagnosis,omitempty"`
	Receipts  []Receipt `json:"receipts,omitempty"`
}

// Receipt is a prescription attached to a visit. Immutable once created.
type Receipt struct {
	ID        int64  `json:"id"`
	VisitID   int64  `json:"visit_id"`
	Drugs     []Drug `json:"drugs"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Drug is a single prescription line.
type Drug struct {
	Drug      string `json:"drug"`
	Frequency string `json:"frequency,omitempty"`
	Period    string `json:"period,omitempty"`
	Timing    string `json:"timing,omitempty"`
}

// Bill is a finalized billing record.
type Bill struct {
	ID            int64         `json:"id"`
	PatientID     int64         `json:"patient_id"`
	VisitID       int64         `json:"visit_id,omitempty"`
	Services      []BillService `json:"services"`
	Discount      float64       `json:"discount,omitempty"`
	Total         float64       `json:"total"`
	PaymentStatus string        `json:"payment_status"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	CreatedAt     string        `json:"created_at,omitempty"`
}

// BillService is one billed line item.
type BillService struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// ServiceItem is a clinic service (or external lab service) offering.
type ServiceItem struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Lab   string  `json:"lab,omitempty"`
}

// DoctorSettings is the per-doctor receipt/print customization document.
type DoctorSettings struct {
	DoctorID        string   `json:"doctor_id"`
	ClinicName      string   `json:"clinic_name,omitempty"`
	HeaderText      string   `json:"header_text,omitempty"`
	FooterText      string   `json:"footer_text,omitempty"`
	ConsultationFee float64  `json:"consultation_fee,omitempty"`
	FollowUpFee     float64  `json:"follow_up_fee,omitempty"`
	ReferralSources []string `json:"referral_sources,omitempty"`
	PrintLayout     string   `json:"print_layout,omitempty"`
}

// HistoryTemplate describes a medical-history intake form.
type HistoryTemplate struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// HistoryRecord is one filled-out medical-history form.
type HistoryRecord struct {
	ID         int64             `json:"id"`
	PatientID  int64             `json:"patient_id"`
	TemplateID int64             `json:"template_id"`
	Values     map[string]string `json:"values"`
}

// RevenueRow is one day of the revenue rollup.
type RevenueRow struct {
	Date       string  `json:"date"`
	BillCount  int     `json:"bill_count"`
	GrossTotal float64 `json:"gross_total"`
	Discounts  float64 `json:"discounts"`
	NetTotal   float64 `json:"net_total"`
}

// PatientQuery parameterizes a patient list fetch.
type PatientQuery struct {
	DoctorID string
	Search   string
	FromDate string
	ToDate   string
	Limit    int
	Offset   int
}
