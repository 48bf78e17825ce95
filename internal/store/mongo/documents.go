package mongo

import (
	"fmt"
	"time"

	"github.com/oatsaysai/budgetbuddy/internal/conversation"
	"github.com/oatsaysai/budgetbuddy/internal/models"
	"github.com/oatsaysai/budgetbuddy/internal/splitcalc"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type userDoc struct {
	ID                 primitive.ObjectID   `bson:"_id"`
	ChatID             string               `bson:"chatId,omitempty"`
	Name               string               `bson:"name"`
	Email              string               `bson:"email,omitempty"`
	Mobile             string               `bson:"mobile,omitempty"`
	IsVerified         bool                 `bson:"isVerified"`
	Status             string               `bson:"status"`
	CurrencyPreference string               `bson:"currencyPreference,omitempty"`
	CurrState          string               `bson:"currState"`
	InProgressData     bson.M               `bson:"inProgressData"`
	Transactions       []primitive.ObjectID `bson:"transactions"`
	Splits             []primitive.ObjectID `bson:"splits"`
	Groups             []primitive.ObjectID `bson:"groups"`
	CreatedAt          time.Time            `bson:"createdAt"`
	UpdatedAt          time.Time            `bson:"updatedAt"`
}

type groupDoc struct {
	ID          primitive.ObjectID   `bson:"_id"`
	Name        string               `bson:"name"`
	Description string               `bson:"description,omitempty"`
	Members     []primitive.ObjectID `bson:"members"`
	CreatedBy   primitive.ObjectID   `bson:"createdBy"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

type transactionDoc struct {
	ID          primitive.ObjectID   `bson:"_id"`
	UserID      primitive.ObjectID   `bson:"userId"`
	Amount      primitive.Decimal128 `bson:"amount"`
	Currency    string               `bson:"currency"`
	Category    string               `bson:"category"`
	Description string               `bson:"description,omitempty"`
	Type        string               `bson:"type"`
	SplitType   string               `bson:"splitType"`
	GroupID     *primitive.ObjectID  `bson:"groupId,omitempty"`
	Date        time.Time            `bson:"date"`
	CreatedAt   time.Time            `bson:"createdAt"`
}

type participantDoc struct {
	User             primitive.ObjectID   `bson:"user"`
	Share            primitive.Decimal128 `bson:"share"`
	Settled          bool                 `bson:"settled"`
	SettlementMethod string               `bson:"settlementMethod,omitempty"`
}

type splitDoc struct {
	ID           primitive.ObjectID  `bson:"_id"`
	Transaction  primitive.ObjectID  `bson:"transaction"`
	PaidBy       primitive.ObjectID  `bson:"paidBy"`
	Group        *primitive.ObjectID `bson:"group,omitempty"`
	SplitType    string              `bson:"splitType"`
	Participants []participantDoc    `bson:"participants"`
	CreatedAt    time.Time           `bson:"createdAt"`
}

type oneTimeCodeDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Email     string             `bson:"email"`
	Code      string             `bson:"otp"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func objectID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid id %q: %w", hex, err)
	}
	return id, nil
}

func objectIDs(hexes []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		id, err := objectID(h)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func optionalObjectID(hex string) (*primitive.ObjectID, error) {
	if hex == "" {
		return nil, nil
	}
	id, err := objectID(hex)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func hexes(ids []primitive.ObjectID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}

func optionalHex(id *primitive.ObjectID) string {
	if id == nil {
		return ""
	}
	return id.Hex()
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("amount %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %s: %w", v, err)
	}
	return d, nil
}

// progressDoc stores the draft as a plain document using its JSON field
// names, which keeps the legacy inProgressData keys.
func progressDoc(p conversation.Progress) (bson.M, error) {
	raw, err := conversation.EncodeProgress(p)
	if err != nil {
		return nil, err
	}
	m := bson.M{}
	if err := bson.UnmarshalExtJSON(raw, false, &m); err != nil {
		return nil, fmt.Errorf("convert progress: %w", err)
	}
	return m, nil
}

func progressFromDoc(flow conversation.Flow, m bson.M) (conversation.Progress, error) {
	if len(m) == 0 {
		return conversation.Progress{}, nil
	}
	raw, err := bson.MarshalExtJSON(plainValue(m), false, false)
	if err != nil {
		return conversation.Progress{}, fmt.Errorf("convert progress: %w", err)
	}
	return conversation.DecodeProgress(flow, raw)
}

// plainValue rewrites BSON-only values into the JSON shapes the drafts
// decode: dates as RFC 3339 strings, ids as hex and decimals as strings.
// Records written by the web dashboard store these types natively.
func plainValue(v any) any {
	switch v := v.(type) {
	case bson.M:
		out := make(bson.M, len(v))
		for k, e := range v {
			out[k] = plainValue(e)
		}
		return out
	case bson.D:
		out := make(bson.M, len(v))
		for _, e := range v {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case bson.A:
		out := make(bson.A, len(v))
		for i, e := range v {
			out[i] = plainValue(e)
		}
		return out
	case primitive.DateTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case primitive.ObjectID:
		return v.Hex()
	case primitive.Decimal128:
		return v.String()
	}
	return v
}

func newUserDoc(u *models.User) (*userDoc, error) {
	id, err := objectID(u.ID)
	if err != nil {
		return nil, err
	}
	progress, err := progressDoc(u.Progress)
	if err != nil {
		return nil, err
	}
	d := &userDoc{
		ID:                 id,
		ChatID:             u.ChatID,
		Name:               u.Name,
		Email:              models.NormalizeEmail(u.Email),
		Mobile:             u.Mobile,
		IsVerified:         u.IsVerified,
		Status:             u.Status,
		CurrencyPreference: u.CurrencyPreference,
		CurrState:          u.State.String(),
		InProgressData:     progress,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
	if d.Transactions, err = objectIDs(u.Transactions); err != nil {
		return nil, err
	}
	if d.Splits, err = objectIDs(u.Splits); err != nil {
		return nil, err
	}
	if d.Groups, err = objectIDs(u.Groups); err != nil {
		return nil, err
	}
	return d, nil
}

// model converts d. Progress that no longer decodes is dropped and the
// user's state reset so that the user can start over.
func (d *userDoc) model(log *zap.Logger) *models.User {
	u := &models.User{
		ID:                 d.ID.Hex(),
		ChatID:             d.ChatID,
		Name:               d.Name,
		Email:              d.Email,
		Mobile:             d.Mobile,
		IsVerified:         d.IsVerified,
		Status:             d.Status,
		CurrencyPreference: d.CurrencyPreference,
		State:              conversation.Decode(d.CurrState),
		Transactions:       hexes(d.Transactions),
		Splits:             hexes(d.Splits),
		Groups:             hexes(d.Groups),
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	var err error
	if u.Progress, err = progressFromDoc(u.State.Flow, d.InProgressData); err != nil {
		log.Warn("Dropping unreadable progress",
			zap.String("user_id", u.ID),
			zap.String("state", d.CurrState),
			zap.Error(err))
		u.ResetState()
	}
	return u
}

func newGroupDoc(g *models.Group) (*groupDoc, error) {
	id, err := objectID(g.ID)
	if err != nil {
		return nil, err
	}
	members, err := objectIDs(g.Members)
	if err != nil {
		return nil, err
	}
	owner, err := objectID(g.CreatedBy)
	if err != nil {
		return nil, err
	}
	return &groupDoc{
		ID:          id,
		Name:        g.Name,
		Description: g.Description,
		Members:     members,
		CreatedBy:   owner,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}, nil
}

func (d *groupDoc) model() *models.Group {
	return &models.Group{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Description: d.Description,
		Members:     hexes(d.Members),
		CreatedBy:   d.CreatedBy.Hex(),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func newTransactionDoc(t *models.Transaction) (*transactionDoc, error) {
	id, err := objectID(t.ID)
	if err != nil {
		return nil, err
	}
	owner, err := objectID(t.UserID)
	if err != nil {
		return nil, err
	}
	group, err := optionalObjectID(t.GroupID)
	if err != nil {
		return nil, err
	}
	amount, err := toDecimal128(t.Amount)
	if err != nil {
		return nil, err
	}
	return &transactionDoc{
		ID:          id,
		UserID:      owner,
		Amount:      amount,
		Currency:    t.Currency,
		Category:    t.Category,
		Description: t.Description,
		Type:        t.Type,
		SplitType:   t.SplitType,
		GroupID:     group,
		Date:        t.Date,
		CreatedAt:   t.CreatedAt,
	}, nil
}

func (d *transactionDoc) model() (*models.Transaction, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return nil, err
	}
	return &models.Transaction{
		ID:          d.ID.Hex(),
		UserID:      d.UserID.Hex(),
		Amount:      amount,
		Currency:    d.Currency,
		Category:    d.Category,
		Description: d.Description,
		Type:        d.Type,
		SplitType:   d.SplitType,
		GroupID:     optionalHex(d.GroupID),
		Date:        d.Date,
		CreatedAt:   d.CreatedAt,
	}, nil
}

func newSplitDoc(s *models.Split) (*splitDoc, error) {
	id, err := objectID(s.ID)
	if err != nil {
		return nil, err
	}
	txID, err := objectID(s.TransactionID)
	if err != nil {
		return nil, err
	}
	payer, err := objectID(s.PaidBy)
	if err != nil {
		return nil, err
	}
	group, err := optionalObjectID(s.GroupID)
	if err != nil {
		return nil, err
	}

	d := &splitDoc{
		ID:          id,
		Transaction: txID,
		PaidBy:      payer,
		Group:       group,
		SplitType:   string(s.SplitType),
		CreatedAt:   s.CreatedAt,
	}
	for _, p := range s.Participants {
		user, err := objectID(p.UserID)
		if err != nil {
			return nil, err
		}
		share, err := toDecimal128(p.Share)
		if err != nil {
			return nil, err
		}
		d.Participants = append(d.Participants, participantDoc{
			User: user, Share: share, Settled: p.Settled, SettlementMethod: p.SettlementMethod,
		})
	}
	return d, nil
}

func (d *splitDoc) model() (*models.Split, error) {
	s := &models.Split{
		ID:            d.ID.Hex(),
		TransactionID: d.Transaction.Hex(),
		PaidBy:        d.PaidBy.Hex(),
		GroupID:       optionalHex(d.Group),
		SplitType:     splitcalc.Type(d.SplitType),
		CreatedAt:     d.CreatedAt,
	}
	for _, p := range d.Participants {
		share, err := fromDecimal128(p.Share)
		if err != nil {
			return nil, err
		}
		s.Participants = append(s.Participants, models.Participant{
			UserID: p.User.Hex(), Share: share, Settled: p.Settled, SettlementMethod: p.SettlementMethod,
		})
	}
	return s, nil
}
