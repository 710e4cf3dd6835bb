package adapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/refina-analytics/internal/models"
	"github.com/refina-analytics/internal/types"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// timestampLayouts are the date formats the upstream services emit
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// record reads fields of a streamed message by name. Numeric accessors accept
// any numeric kind and numeric strings, so a service that widens a field
// still decodes.
type record struct {
	msg protoreflect.Message
}

func (r record) field(name string) (protoreflect.FieldDescriptor, bool) {
	if r.msg == nil || !r.msg.IsValid() {
		return nil, false
	}
	fd := r.msg.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil || fd.IsList() || fd.IsMap() {
		return nil, false
	}
	return fd, true
}

func (r record) str(name string) string {
	fd, ok := r.field(name)
	if !ok {
		return ""
	}
	v := r.msg.Get(fd)
	switch fd.Kind() {
	case protoreflect.StringKind:
		return v.String()
	case protoreflect.DoubleKind, protoreflect.FloatKind:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return strconv.FormatInt(v.Int(), 10)
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind, protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return strconv.FormatUint(v.Uint(), 10)
	}
	return ""
}

func (r record) num(name string) (float64, error) {
	fd, ok := r.field(name)
	if !ok {
		return 0, nil
	}
	v := r.msg.Get(fd)
	switch fd.Kind() {
	case protoreflect.DoubleKind, protoreflect.FloatKind:
		return v.Float(), nil
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return float64(v.Int()), nil
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind, protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return float64(v.Uint()), nil
	case protoreflect.StringKind:
		s := strings.TrimSpace(v.String())
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: field %s is not numeric: %q", ErrMalformedRecord, name, s)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: field %s is not numeric", ErrMalformedRecord, name)
}

func (r record) timestamp(name string) (time.Time, error) {
	s := strings.TrimSpace(r.str(name))
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: missing %s", ErrMalformedRecord, name)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: field %s has unsupported date %q", ErrMalformedRecord, name, s)
}

func (r record) nested(name string) record {
	fd, ok := r.field(name)
	if !ok || fd.Kind() != protoreflect.MessageKind || !r.msg.Has(fd) {
		return record{}
	}
	return record{msg: r.msg.Get(fd).Message()}
}

func decodeWallet(msg protoreflect.Message) (models.Wallet, error) {
	r := record{msg: msg}
	balance, err := r.num("balance")
	if err != nil {
		return models.Wallet{}, err
	}
	w := models.Wallet{
		ID:             r.str("id"),
		UserID:         r.str("user_id"),
		Name:           r.str("name"),
		Number:         r.str("number"),
		Balance:        balance,
		WalletTypeID:   r.str("wallet_type_id"),
		WalletType:     r.str("wallet_type"),
		WalletTypeName: r.str("wallet_type_name"),
	}
	if w.ID == "" {
		return models.Wallet{}, fmt.Errorf("%w: wallet without id", ErrMalformedRecord)
	}
	return w, nil
}

func decodeTransaction(msg protoreflect.Message) (models.Transaction, error) {
	r := record{msg: msg}
	amount, err := r.num("amount")
	if err != nil {
		return models.Transaction{}, err
	}
	date, err := r.timestamp("transaction_date")
	if err != nil {
		return models.Transaction{}, err
	}
	tx := models.Transaction{
		ID:              r.str("id"),
		WalletID:        r.str("wallet_id"),
		Amount:          amount,
		CategoryID:      r.str("category_id"),
		CategoryName:    r.str("category_name"),
		CategoryType:    types.CategoryType(strings.ToLower(r.str("category_type"))),
		TransactionDate: date,
		Description:     r.str("description"),
	}
	if tx.ID == "" {
		return models.Transaction{}, fmt.Errorf("%w: transaction without id", ErrMalformedRecord)
	}
	return tx, nil
}

func decodeInvestment(msg protoreflect.Message) (models.Investment, error) {
	r := record{msg: msg}

	var nums [3]float64
	for i, name := range []string{"quantity", "initialValuation", "amount"} {
		v, err := r.num(name)
		if err != nil {
			return models.Investment{}, err
		}
		nums[i] = v
	}

	asset, err := decodeAssetRate(r.nested("assetCode"))
	if err != nil {
		return models.Investment{}, err
	}

	inv := models.Investment{
		ID:               r.str("id"),
		Code:             r.str("code"),
		UserID:           r.str("userID"),
		Quantity:         nums[0],
		InitialValuation: nums[1],
		Amount:           nums[2],
		Description:      r.str("description"),
		Asset:            asset,
	}
	// position dates are informational only
	if date, err := r.timestamp("date"); err == nil {
		inv.Date = date
	}
	if inv.ID == "" {
		return models.Investment{}, fmt.Errorf("%w: investment without id", ErrMalformedRecord)
	}
	return inv, nil
}

func decodeAssetRate(r record) (models.AssetRate, error) {
	var rates [3]float64
	for i, name := range []string{"toUSD", "toEUR", "toIDR"} {
		v, err := r.num(name)
		if err != nil {
			return models.AssetRate{}, err
		}
		rates[i] = v
	}
	return models.AssetRate{
		Code:  r.str("code"),
		Name:  r.str("name"),
		Unit:  r.str("unit"),
		ToUSD: rates[0],
		ToEUR: rates[1],
		ToIDR: rates[2],
	}, nil
}
