// Package mempool provides a client for the mempool.space Lightning node
// ranking API.
package mempool

// Location is a localized place name. English is always present; every other
// language is optional.
type Location struct {
	DE   *string `json:"de,omitempty"`
	EN   string  `json:"en"`
	ES   *string `json:"es,omitempty"`
	FR   *string `json:"fr,omitempty"`
	JA   *string `json:"ja,omitempty"`
	PTBR *string `json:"pt-BR,omitempty"`
	RU   *string `json:"ru,omitempty"`
	ZHCN *string `json:"zh-CN,omitempty"`
}

// Node is a Lightning node as reported by the connectivity ranking.
type Node struct {
	PublicKey   string    `json:"publicKey"`
	Alias       string    `json:"alias"`
	Channels    int64     `json:"channels"`
	Capacity    uint64    `json:"capacity"`
	FirstSeen   uint64    `json:"firstSeen"`
	UpdatedAt   int64     `json:"updatedAt"`
	City        *Location `json:"city,omitempty"`
	Country     *Location `json:"country,omitempty"`
	ISOCode     *string   `json:"iso_code,omitempty"`
	Subdivision *string   `json:"subdivision,omitempty"`
}

// wireLocation mirrors Location with pointers on required fields so that a
// missing key can be told apart from an empty value.
type wireLocation struct {
	DE   *string `json:"de"`
	EN   *string `json:"en" validate:"required"`
	ES   *string `json:"es"`
	FR   *string `json:"fr"`
	JA   *string `json:"ja"`
	PTBR *string `json:"pt-BR"`
	RU   *string `json:"ru"`
	ZHCN *string `json:"zh-CN"`
}

// wireNode bounds firstSeen by units.MaxEpochSeconds.
type wireNode struct {
	PublicKey   *string       `json:"publicKey" validate:"required"`
	Alias       *string       `json:"alias" validate:"required"`
	Channels    *int64        `json:"channels" validate:"required"`
	Capacity    *uint64       `json:"capacity" validate:"required"`
	FirstSeen   *uint64       `json:"firstSeen" validate:"required,lte=253402300799"`
	UpdatedAt   *int64        `json:"updatedAt" validate:"required"`
	City        *wireLocation `json:"city"`
	Country     *wireLocation `json:"country"`
	ISOCode     *string       `json:"iso_code"`
	Subdivision *string       `json:"subdivision"`
}

func (l *wireLocation) toLocation() *Location {
	if l == nil {
		return nil
	}
	return &Location{
		DE:   l.DE,
		EN:   *l.EN,
		ES:   l.ES,
		FR:   l.FR,
		JA:   l.JA,
		PTBR: l.PTBR,
		RU:   l.RU,
		ZHCN: l.ZHCN,
	}
}

// toNode must only be called after the wire node passed validation.
func (w *wireNode) toNode() Node {
	return Node{
		PublicKey:   *w.PublicKey,
		Alias:       *w.Alias,
		Channels:    *w.Channels,
		Capacity:    *w.Capacity,
		FirstSeen:   *w.FirstSeen,
		UpdatedAt:   *w.UpdatedAt,
		City:        w.City.toLocation(),
		Country:     w.Country.toLocation(),
		ISOCode:     w.ISOCode,
		Subdivision: w.Subdivision,
	}
}
