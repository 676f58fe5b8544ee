// Package mongo stores users and expenses in MongoDB documents. Each user
// document embeds its monthly index (yearMonth -> expense ids).
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/mgo/v3"
	"github.com/juju/mgo/v3/bson"

	"expensetracker/internal/core"
	"expensetracker/internal/store"
)

const (
	usersC    = "users"
	expensesC = "expenses"
)

type userDoc struct {
	ID              bson.ObjectId       `bson:"_id"`
	Username        string              `bson:"username"`
	PasswordHash    string              `bson:"password_hash"`
	IsAdmin         bool                `bson:"is_admin"`
	MonthlyExpenses map[string][]string `bson:"monthly_expenses"`
	CreatedAt       time.Time           `bson:"created_at"`
}

type expenseDoc struct {
	ID          bson.ObjectId `bson:"_id"`
	UserID      bson.ObjectId `bson:"user_id"`
	YearMonth   string        `bson:"year_month"`
	Category    string        `bson:"category"`
	Description string        `bson:"description"`
	AmountCents int64         `bson:"amount_cents"`
	CreatedAt   time.Time     `bson:"created_at"`
}

type Store struct {
	session *mgo.Session
	dbName  string
}

var _ store.Store = (*Store)(nil)

// Open dials uri and ensures the collection indexes exist.
func Open(uri, dbName string, timeout time.Duration) (*Store, error) {
	session, err := mgo.DialWithTimeout(uri, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial mongodb: %w", err)
	}
	session.SetMode(mgo.Monotonic, true)
	if dbName == "" {
		dbName = session.DB("").Name
	}
	s := &Store{session: session, dbName: dbName}
	if err := s.ensureIndexes(); err != nil {
		session.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes() error {
	session := s.session.Copy()
	defer session.Close()
	db := session.DB(s.dbName)

	if err := db.C(usersC).EnsureIndex(mgo.Index{Key: []string{"username"}, Unique: true}); err != nil {
		return fmt.Errorf("ensure users index: %w", err)
	}
	if err := db.C(expensesC).EnsureIndex(mgo.Index{Key: []string{"user_id", "year_month"}}); err != nil {
		return fmt.Errorf("ensure expenses index: %w", err)
	}
	return nil
}

// collections returns a copied session; callers must Close it.
func (s *Store) collections() (*mgo.Session, *mgo.Collection, *mgo.Collection) {
	session := s.session.Copy()
	db := session.DB(s.dbName)
	return session, db.C(usersC), db.C(expensesC)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	session := s.session.Copy()
	defer session.Close()
	return session.Ping()
}

func (s *Store) Close() error {
	s.session.Close()
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if err := ctx.Err(); err != nil {
		return core.User{}, err
	}
	session, users, _ := s.collections()
	defer session.Close()

	doc := userDoc{
		ID:              bson.NewObjectId(),
		Username:        u.Username,
		PasswordHash:    u.PasswordHash,
		IsAdmin:         u.IsAdmin,
		MonthlyExpenses: map[string][]string{},
		CreatedAt:       u.CreatedAt,
	}
	if u.ID != "" {
		if !bson.IsObjectIdHex(u.ID) {
			return core.User{}, fmt.Errorf("invalid user id %q", u.ID)
		}
		doc.ID = bson.ObjectIdHex(u.ID)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if err := users.Insert(doc); err != nil {
		if mgo.IsDup(err) {
			return core.User{}, store.ErrUsernameTaken
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return doc.toUser(), nil
}

func (s *Store) UserByID(ctx context.Context, id string) (core.User, error) {
	if err := ctx.Err(); err != nil {
		return core.User{}, err
	}
	if !bson.IsObjectIdHex(id) {
		return core.User{}, store.ErrNotFound
	}
	session, users, _ := s.collections()
	defer session.Close()

	var doc userDoc
	if err := users.FindId(bson.ObjectIdHex(id)).One(&doc); err != nil {
		return core.User{}, notFound(err, "load user")
	}
	return doc.toUser(), nil
}

func (s *Store) UserByName(ctx context.Context, username string) (core.User, error) {
	if err := ctx.Err(); err != nil {
		return core.User{}, err
	}
	session, users, _ := s.collections()
	defer session.Close()

	var doc userDoc
	if err := users.Find(bson.M{"username": username}).One(&doc); err != nil {
		return core.User{}, notFound(err, "load user")
	}
	return doc.toUser(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	session, users, _ := s.collections()
	defer session.Close()

	var docs []userDoc
	if err := users.Find(nil).Sort("created_at", "username").All(&docs); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]core.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toUser())
	}
	return out, nil
}

func (s *Store) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := ctx.Err(); err != nil {
		return core.Expense{}, err
	}
	if !bson.IsObjectIdHex(e.UserID) {
		return core.Expense{}, store.ErrNotFound
	}
	session, users, expenses := s.collections()
	defer session.Close()

	userID := bson.ObjectIdHex(e.UserID)
	if n, err := users.FindId(userID).Count(); err != nil {
		return core.Expense{}, fmt.Errorf("check owner: %w", err)
	} else if n == 0 {
		return core.Expense{}, store.ErrNotFound
	}

	doc := expenseDoc{
		ID:          bson.NewObjectId(),
		UserID:      userID,
		YearMonth:   string(e.YearMonth),
		Category:    string(e.Category),
		Description: e.Description,
		AmountCents: e.Amount.Cents,
		CreatedAt:   e.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if err := expenses.Insert(doc); err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	push := bson.M{"$push": bson.M{"monthly_expenses." + doc.YearMonth: doc.ID.Hex()}}
	if err := users.UpdateId(userID, push); err != nil {
		return core.Expense{}, notFound(err, "index expense")
	}
	return doc.toExpense(), nil
}

func (s *Store) ExpenseByID(ctx context.Context, id string) (core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return core.Expense{}, err
	}
	if !bson.IsObjectIdHex(id) {
		return core.Expense{}, store.ErrNotFound
	}
	session, _, expenses := s.collections()
	defer session.Close()

	var doc expenseDoc
	if err := expenses.FindId(bson.ObjectIdHex(id)).One(&doc); err != nil {
		return core.Expense{}, notFound(err, "load expense")
	}
	return doc.toExpense(), nil
}

func (s *Store) ExpensesForMonth(ctx context.Context, userID string, ym core.YearMonth) ([]core.Expense, error) {
	u, err := s.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := u.ExpenseIDs(ym)
	if len(ids) == 0 {
		return []core.Expense{}, nil
	}
	oids := make([]bson.ObjectId, 0, len(ids))
	for _, id := range ids {
		if bson.IsObjectIdHex(id) {
			oids = append(oids, bson.ObjectIdHex(id))
		}
	}

	session, _, expenses := s.collections()
	defer session.Close()

	var docs []expenseDoc
	if err := expenses.Find(bson.M{"_id": bson.M{"$in": oids}}).All(&docs); err != nil {
		return nil, fmt.Errorf("load month expenses: %w", err)
	}
	byID := make(map[string]expenseDoc, len(docs))
	for _, d := range docs {
		byID[d.ID.Hex()] = d
	}
	out := make([]core.Expense, 0, len(docs))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d.toExpense())
		}
	}
	return out, nil
}

func (s *Store) ExpensesForUser(ctx context.Context, userID string) ([]core.Expense, error) {
	if _, err := s.UserByID(ctx, userID); err != nil {
		return nil, err
	}
	session, _, expenses := s.collections()
	defer session.Close()

	var docs []expenseDoc
	if err := expenses.Find(bson.M{"user_id": bson.ObjectIdHex(userID)}).Sort("created_at").All(&docs); err != nil {
		return nil, fmt.Errorf("load user expenses: %w", err)
	}
	out := make([]core.Expense, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toExpense())
	}
	return out, nil
}

func (s *Store) ClearUserExpenses(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !bson.IsObjectIdHex(userID) {
		return store.ErrNotFound
	}
	session, users, expenses := s.collections()
	defer session.Close()

	oid := bson.ObjectIdHex(userID)
	if _, err := expenses.RemoveAll(bson.M{"user_id": oid}); err != nil {
		return fmt.Errorf("remove expenses: %w", err)
	}
	reset := bson.M{"$set": bson.M{"monthly_expenses": bson.M{}}}
	if err := users.UpdateId(oid, reset); err != nil {
		return notFound(err, "reset monthly index")
	}
	return nil
}

func notFound(err error, op string) error {
	if err == mgo.ErrNotFound {
		return store.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (d userDoc) toUser() core.User {
	idx := make(map[core.YearMonth][]string, len(d.MonthlyExpenses))
	for ym, ids := range d.MonthlyExpenses {
		idx[core.YearMonth(ym)] = ids
	}
	return core.User{
		ID:              d.ID.Hex(),
		Username:        d.Username,
		PasswordHash:    d.PasswordHash,
		IsAdmin:         d.IsAdmin,
		MonthlyExpenses: idx,
		CreatedAt:       d.CreatedAt,
	}
}

func (d expenseDoc) toExpense() core.Expense {
	return core.Expense{
		ID:          d.ID.Hex(),
		UserID:      d.UserID.Hex(),
		Category:    core.Category(d.Category),
		Description: d.Description,
		Amount:      core.Money{Cents: d.AmountCents},
		YearMonth:   core.YearMonth(d.YearMonth),
		CreatedAt:   d.CreatedAt,
	}
}
