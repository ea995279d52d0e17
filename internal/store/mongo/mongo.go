// Package mongo is the document-store backend. Cargo payloads are stored as
// embedded documents; master data lives in one collection per kind.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cargodesk/backend/internal/domain"
	"cargodesk/backend/internal/store"
)

const (
	colBranches = "branches"
	colStaff    = "staff"
	colParties  = "parties"
	colOptions  = "options"
	colCargos   = "cargos"
	colCounters = "counters"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

type branchDoc struct {
	ID                 int64  `bson:"_id"`
	Name               string `bson:"name"`
	Code               string `bson:"code"`
	InvoiceStartNumber int64  `bson:"invoice_start_number"`
}

type staffDoc struct {
	ID          int64  `bson:"_id"`
	Name        string `bson:"name"`
	BranchID    int64  `bson:"branch_id"`
	Role        string `bson:"role"`
	PhoneCode   string `bson:"phone_code"`
	PhoneNumber string `bson:"phone_number"`
}

type partyDoc struct {
	ID      int64  `bson:"_id"`
	Name    string `bson:"name"`
	Address string `bson:"address"`
	Phone   string `bson:"phone"`
	RoleID  int64  `bson:"role_id"`
}

type optionDoc struct {
	Kind string `bson:"kind"`
	ID   int64  `bson:"id"`
	Name string `bson:"name"`
}

type cargoDoc struct {
	ID        int64     `bson:"_id"`
	BookingNo string    `bson:"booking_no"`
	BranchID  int64     `bson:"branch_id"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
	Payload   bson.Raw  `bson:"payload"`
}

func New(ctx context.Context, url string, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the lookup indexes the queries below rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string]mongo.IndexModel{
		colCargos:  {Keys: bson.D{{Key: "branch_id", Value: 1}}},
		colStaff:   {Keys: bson.D{{Key: "branch_id", Value: 1}, {Key: "role", Value: 1}}},
		colParties: {Keys: bson.D{{Key: "role_id", Value: 1}, {Key: "name", Value: 1}}},
		colOptions: {Keys: bson.D{{Key: "kind", Value: 1}, {Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	for collection, model := range indexes {
		if _, err := s.db.Collection(collection).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", collection, err)
		}
	}
	return nil
}

func (s *Store) FetchBranches(ctx context.Context) ([]domain.Branch, error) {
	cur, err := s.db.Collection(colBranches).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []branchDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Branch, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Branch{ID: d.ID, Name: d.Name, Code: d.Code, InvoiceStartNumber: d.InvoiceStartNumber})
	}
	return out, nil
}

func (s *Store) FetchBranchInvoiceCounter(ctx context.Context, branchID int64) (domain.BranchCounter, error) {
	var branch branchDoc
	err := s.db.Collection(colBranches).FindOne(ctx, bson.M{"_id": branchID}).Decode(&branch)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.BranchCounter{}, fmt.Errorf("branch %d: %w", branchID, store.ErrNotFound)
		}
		return domain.BranchCounter{}, err
	}

	counter := domain.BranchCounter{BranchID: branch.ID, BranchCode: branch.Code, StartNumber: branch.InvoiceStartNumber}
	cur, err := s.db.Collection(colCargos).Find(ctx,
		bson.M{"branch_id": branchID},
		options.Find().SetProjection(bson.M{"booking_no": 1}),
	)
	if err != nil {
		return domain.BranchCounter{}, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var row struct {
			BookingNo string `bson:"booking_no"`
		}
		if err := cur.Decode(&row); err != nil {
			return domain.BranchCounter{}, err
		}
		if n, ok := store.BookingSequence(row.BookingNo); ok && n > counter.HighestObserved {
			counter.HighestObserved = n
		}
	}
	return counter, cur.Err()
}

func (s *Store) FetchBranchStaff(ctx context.Context, branchID int64) ([]domain.Staff, error) {
	docs, err := s.findStaff(ctx, bson.M{"branch_id": branchID, "role": domain.StaffRoleOffice})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Staff, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Staff{ID: d.ID, Name: d.Name, BranchID: d.BranchID, Role: d.Role})
	}
	return out, nil
}

func (s *Store) FetchDrivers(ctx context.Context) ([]domain.Driver, error) {
	docs, err := s.findStaff(ctx, bson.M{"role": domain.StaffRoleDriver})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Driver, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Driver{ID: d.ID, Name: d.Name, PhoneCode: d.PhoneCode, PhoneNumber: d.PhoneNumber})
	}
	return out, nil
}

func (s *Store) findStaff(ctx context.Context, filter bson.M) ([]staffDoc, error) {
	cur, err := s.db.Collection(colStaff).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []staffDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) FetchMasterLists(ctx context.Context, req domain.MasterListRequest) (domain.MasterLists, error) {
	var lists domain.MasterLists
	kinds := store.RequestedKinds(req)
	if len(kinds) == 0 {
		return lists, nil
	}

	cur, err := s.db.Collection(colOptions).Find(ctx,
		bson.M{"kind": bson.M{"$in": kinds}},
		options.Find().SetSort(bson.D{{Key: "kind", Value: 1}, {Key: "sort_order", Value: 1}, {Key: "id", Value: 1}}),
	)
	if err != nil {
		return lists, err
	}
	var docs []optionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return lists, err
	}

	grouped := make(map[string][]domain.Option, len(kinds))
	for _, kind := range kinds {
		grouped[kind] = []domain.Option{}
	}
	for _, d := range docs {
		grouped[d.Kind] = append(grouped[d.Kind], domain.Option{ID: d.ID, Name: d.Name})
	}
	for kind, opts := range grouped {
		store.AssignList(&lists, kind, opts)
	}
	return lists, nil
}

func (s *Store) FetchPartiesByRole(ctx context.Context, roleID int64) ([]domain.Party, error) {
	cur, err := s.db.Collection(colParties).Find(ctx, bson.M{"role_id": roleID}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []partyDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Party, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Party{ID: d.ID, Name: d.Name, Address: d.Address, Phone: d.Phone, RoleID: d.RoleID})
	}
	return out, nil
}

func (s *Store) PersistCargo(ctx context.Context, record domain.Payload) (domain.PersistedCargo, error) {
	bookingNo, branchID, err := store.RecordKeys(record)
	if err != nil {
		return domain.PersistedCargo{}, err
	}
	if err := s.db.Collection(colBranches).FindOne(ctx, bson.M{"_id": branchID}).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.PersistedCargo{}, fmt.Errorf("%w: unknown branch %d", store.ErrInvalidRecord, branchID)
		}
		return domain.PersistedCargo{}, err
	}

	id, err := s.nextSequence(ctx, colCargos)
	if err != nil {
		return domain.PersistedCargo{}, fmt.Errorf("allocate cargo id: %w", err)
	}
	payload := withoutID(record)
	now := time.Now().UTC().Truncate(time.Millisecond)
	_, err = s.db.Collection(colCargos).InsertOne(ctx, bson.M{
		"_id":        id,
		"booking_no": bookingNo,
		"branch_id":  branchID,
		"created_at": now,
		"updated_at": now,
		"payload":    map[string]any(payload),
	})
	if err != nil {
		return domain.PersistedCargo{}, err
	}
	return s.FetchCargoByID(ctx, id)
}

// PersistCargoUpdate sets each key of record inside the stored payload; keys
// absent from record keep their stored value.
func (s *Store) PersistCargoUpdate(ctx context.Context, id int64, record domain.Payload) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range withoutID(record) {
		set["payload."+k] = v
	}
	if bookingNo, ok := record["booking_no"].(string); ok && strings.TrimSpace(bookingNo) != "" {
		set["booking_no"] = strings.TrimSpace(bookingNo)
	}

	res, err := s.db.Collection(colCargos).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) FetchCargoByID(ctx context.Context, id int64) (domain.PersistedCargo, error) {
	var doc cargoDoc
	err := s.db.Collection(colCargos).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.PersistedCargo{}, store.ErrNotFound
		}
		return domain.PersistedCargo{}, err
	}

	record, err := decodePayload(doc.Payload)
	if err != nil {
		return domain.PersistedCargo{}, err
	}
	record["id"] = float64(doc.ID)
	return domain.PersistedCargo{
		ID:        doc.ID,
		BookingNo: doc.BookingNo,
		BranchID:  doc.BranchID,
		CreatedAt: doc.CreatedAt,
		Record:    record,
	}, nil
}

func (s *Store) nextSequence(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.db.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	return counter.Seq, err
}

// decodePayload converts the stored document into the same generic JSON shape
// the other backends return.
func decodePayload(raw bson.Raw) (domain.Payload, error) {
	record := domain.Payload{}
	if len(raw) == 0 {
		return record, nil
	}
	extJSON, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("decode cargo payload: %w", err)
	}
	if err := json.Unmarshal(extJSON, &record); err != nil {
		return nil, fmt.Errorf("decode cargo payload: %w", err)
	}
	return record, nil
}

func withoutID(record domain.Payload) domain.Payload {
	out := make(domain.Payload, len(record))
	for k, v := range record {
		if k != "id" {
			out[k] = v
		}
	}
	return out
}
