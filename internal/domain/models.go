package domain

import "time"

// MaxItemsPerBooking caps the total number of item lines across all boxes.
const MaxItemsPerBooking = 45

type Item struct {
	Name       string  `json:"name"`
	Pieces     int64   `json:"pieces"`
	ItemWeight float64 `json:"item_weight"`
}

type Box struct {
	BoxNumber string  `json:"box_number"`
	BoxWeight float64 `json:"box_weight"`
	Items     []Item  `json:"items"`
}

// PlaceholderItem is the line every new or empty box starts with.
func PlaceholderItem() Item {
	return Item{Pieces: 1}
}

type ChargeKey string

const (
	ChargeTotalWeight             ChargeKey = "total_weight"
	ChargeDuty                    ChargeKey = "duty"
	ChargePackingCharge           ChargeKey = "packing_charge"
	ChargeAdditionalPackingCharge ChargeKey = "additional_packing_charge"
	ChargeInsurance               ChargeKey = "insurance"
	ChargeAWBFee                  ChargeKey = "awb_fee"
	ChargeVATAmount               ChargeKey = "vat_amount"
	ChargeVolumeWeight            ChargeKey = "volume_weight"
	ChargeOtherCharges            ChargeKey = "other_charges"
	ChargeDiscount                ChargeKey = "discount"
)

// ChargeKeys is the closed, ordered set of ledger rows.
var ChargeKeys = []ChargeKey{
	ChargeTotalWeight,
	ChargeDuty,
	ChargePackingCharge,
	ChargeAdditionalPackingCharge,
	ChargeInsurance,
	ChargeAWBFee,
	ChargeVATAmount,
	ChargeVolumeWeight,
	ChargeOtherCharges,
	ChargeDiscount,
}

func IsChargeKey(key string) bool {
	for _, k := range ChargeKeys {
		if string(k) == key {
			return true
		}
	}
	return false
}

type ChargeRow struct {
	Quantity float64 `json:"quantity"`
	Rate     float64 `json:"rate"`
	Amount   float64 `json:"amount"`
}

// Charges holds the stored ledger inputs. Missing keys read as zero rows.
type Charges map[ChargeKey]ChargeRow

func NewCharges() Charges {
	charges := make(Charges, len(ChargeKeys))
	for _, key := range ChargeKeys {
		charges[key] = ChargeRow{}
	}
	return charges
}

func (c Charges) Clone() Charges {
	out := make(Charges, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

type LedgerLine struct {
	Key      ChargeKey `json:"key"`
	Quantity float64   `json:"quantity"`
	Rate     float64   `json:"rate"`
	Amount   float64   `json:"amount"`
}

type LedgerSummary struct {
	Lines         []LedgerLine `json:"lines"`
	TotalWeight   float64      `json:"total_weight"`
	Subtotal      float64      `json:"subtotal"`
	BillCharges   float64      `json:"bill_charges"`
	TotalAmount   float64      `json:"total_amount"`
	VATPercentage float64      `json:"vat_percentage"`
	VATCost       float64      `json:"vat_cost"`
	NetTotal      float64      `json:"net_total"`
	NoOfPieces    int          `json:"no_of_pieces"`
}

// Selection is a form-level reference to master data. ID stays a string the way
// form controls carry it; the payload builder coerces it.
type Selection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s Selection) IsZero() bool {
	return s.ID == "" && s.Name == ""
}

// Booking is the editable cargo booking aggregate.
type Booking struct {
	CargoID        int64     `json:"cargo_id,omitempty"`
	BookingNo      string    `json:"booking_no"`
	Branch         Selection `json:"branch"`
	Sender         Selection `json:"sender"`
	Receiver       Selection `json:"receiver"`
	ShippingMethod Selection `json:"shipping_method"`
	PaymentMethod  Selection `json:"payment_method"`
	Status         Selection `json:"status"`
	DeliveryType   Selection `json:"delivery_type"`
	CollectedBy    Selection `json:"collected_by"`
	Staff          Selection `json:"staff"`
	Driver         Selection `json:"driver"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	Boxes          []Box     `json:"boxes"`
	Charges        Charges   `json:"charges"`
	VATPercentage  float64   `json:"vat_percentage"`
	SpecialRemarks string    `json:"special_remarks,omitempty"`
}

type FlatItem struct {
	SlNo       int    `json:"slno"`
	BoxNumber  string `json:"box_number"`
	Name       string `json:"name"`
	PieceNo    string `json:"piece_no"`
	Weight     string `json:"weight"`
	UnitPrice  string `json:"unit_price"`
	TotalPrice string `json:"total_price"`
}

// Payload is the persistence record keyed by canonical field names.
type Payload map[string]any

// Sparse drops empty-string and nil fields for partial updates.
func (p Payload) Sparse() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}

type BranchCounter struct {
	BranchID        int64  `json:"branch_id"`
	BranchCode      string `json:"branch_code"`
	StartNumber     int64  `json:"start_number"`
	HighestObserved int64  `json:"highest_observed"`
}

type Option struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Branch struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Code               string `json:"code"`
	InvoiceStartNumber int64  `json:"invoice_start_number"`
}

type Staff struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	BranchID int64  `json:"branch_id"`
	Role     string `json:"role"`
}

type Driver struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PhoneCode   string `json:"phone_code"`
	PhoneNumber string `json:"phone_number"`
}

type Party struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	RoleID  int64  `json:"role_id"`
}

const (
	StaffRoleOffice = "Office"
	StaffRoleDriver = "Driver"

	PartyRoleSender   int64 = 1
	PartyRoleReceiver int64 = 2
)

type MasterListRequest struct {
	Methods          bool `json:"methods"`
	PaymentMethods   bool `json:"payment_methods"`
	DeliveryTypes    bool `json:"delivery_types"`
	CollectedByRoles bool `json:"collected_by_roles"`
	Statuses         bool `json:"statuses"`
}

func AllMasterLists() MasterListRequest {
	return MasterListRequest{Methods: true, PaymentMethods: true, DeliveryTypes: true, CollectedByRoles: true, Statuses: true}
}

type MasterLists struct {
	ShippingMethods  []Option `json:"shipping_methods"`
	PaymentMethods   []Option `json:"payment_methods"`
	DeliveryTypes    []Option `json:"delivery_types"`
	CollectedByRoles []Option `json:"collected_by_roles"`
	Statuses         []Option `json:"statuses"`
}

// Lookups is the merged result of every master-data fetch a booking form needs.
type Lookups struct {
	Branches  []Option    `json:"branches"`
	Staff     []Option    `json:"staff"`
	Drivers   []Driver    `json:"drivers"`
	Senders   []Party     `json:"senders"`
	Receivers []Party     `json:"receivers"`
	Lists     MasterLists `json:"lists"`
}

type PersistedCargo struct {
	ID        int64     `json:"id"`
	BookingNo string    `json:"booking_no"`
	BranchID  int64     `json:"branch_id"`
	CreatedAt time.Time `json:"created_at"`
	Record    Payload   `json:"record"`
}

type Actor struct {
	StaffID  string
	Role     string
	BranchID int64
}

type DraftView struct {
	ID        string        `json:"id"`
	Booking   Booking       `json:"booking"`
	Summary   LedgerSummary `json:"summary"`
	ItemCount int           `json:"item_count"`
	Lookups   *Lookups      `json:"lookups,omitempty"`
	Warnings  []string      `json:"warnings,omitempty"`
}

type SubmitResult struct {
	Cargo           PersistedCargo `json:"cargo"`
	BookingNo       string         `json:"booking_no"`
	ShownBookingNo  string         `json:"shown_booking_no"`
	NumberCorrected bool           `json:"number_corrected"`
	NextBookingNo   string         `json:"next_booking_no"`
	Payload         Payload        `json:"payload"`
}

type InvoiceView struct {
	CargoID    int64         `json:"cargo_id"`
	BookingNo  string        `json:"booking_no"`
	Booking    Booking       `json:"booking"`
	Items      []FlatItem    `json:"items"`
	BoxWeights []string      `json:"box_weight"`
	Summary    LedgerSummary `json:"summary"`
}

// ChargeComputeRequest is the stateless ledger calculation input.
type ChargeComputeRequest struct {
	Boxes         []Box   `json:"boxes"`
	Charges       Charges `json:"charges"`
	VATPercentage float64 `json:"vat_percentage"`
}

type CreateDraftRequest struct {
	BranchID int64 `json:"branch_id"`
}

// HeaderUpdate carries the non-content form fields. Nil fields are left as
// they are.
type HeaderUpdate struct {
	BookingNo      *string    `json:"booking_no,omitempty"`
	Branch         *Selection `json:"branch,omitempty"`
	Sender         *Selection `json:"sender,omitempty"`
	Receiver       *Selection `json:"receiver,omitempty"`
	ShippingMethod *Selection `json:"shipping_method,omitempty"`
	PaymentMethod  *Selection `json:"payment_method,omitempty"`
	Status         *Selection `json:"status,omitempty"`
	DeliveryType   *Selection `json:"delivery_type,omitempty"`
	CollectedBy    *Selection `json:"collected_by,omitempty"`
	Staff          *Selection `json:"staff,omitempty"`
	Driver         *Selection `json:"driver,omitempty"`
	Date           *string    `json:"date,omitempty"`
	Time           *string    `json:"time,omitempty"`
	SpecialRemarks *string    `json:"special_remarks,omitempty"`
	VATPercentage  any        `json:"vat_percentage,omitempty"`
}

// NormalizedCargo shows a record in both the nested and the flat form.
type NormalizedCargo struct {
	Boxes      []Box         `json:"boxes"`
	Items      []FlatItem    `json:"items"`
	BoxWeights []string      `json:"box_weight"`
	Summary    LedgerSummary `json:"summary"`
}
