package core

import "errors"

// MatchField names the Transaction attribute a Rule pattern is tested against.
type MatchField string

const (
	FieldMerchant     MatchField = "merchant"
	FieldRawCategory  MatchField = "raw_category"
	FieldCategory     MatchField = "category"
	FieldBucket       MatchField = "bucket"
	FieldCurrency     MatchField = "currency"
	FieldSourceSystem MatchField = "source_system"
)

var ErrUnknownField = errors.New("unknown rule field")

var fieldAccessors = map[MatchField]func(Transaction) (string, bool){
	FieldMerchant:     func(t Transaction) (string, bool) { return t.Merchant, true },
	FieldRawCategory:  func(t Transaction) (string, bool) { return deref(t.RawCategory) },
	FieldCategory:     func(t Transaction) (string, bool) { return deref(t.Category) },
	FieldBucket:       func(t Transaction) (string, bool) { return deref(t.Bucket) },
	FieldCurrency:     func(t Transaction) (string, bool) { return t.Currency, true },
	FieldSourceSystem: func(t Transaction) (string, bool) { return t.SourceSystem, true },
}

// MatchFields lists the accepted field names in a stable order.
func MatchFields() []MatchField {
	return []MatchField{FieldMerchant, FieldRawCategory, FieldCategory, FieldBucket, FieldCurrency, FieldSourceSystem}
}

// IsValid reports whether f names a matchable Transaction attribute.
func (f MatchField) IsValid() bool {
	_, ok := fieldAccessors[f]
	return ok
}

func (f MatchField) String() string {
	return string(f)
}

// Value reads the attribute named by f from t. The second result is false when
// the attribute is unset or f is not a known field.
func (f MatchField) Value(t Transaction) (string, bool) {
	get, ok := fieldAccessors[f]
	if !ok {
		return "", false
	}
	return get(t)
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}
