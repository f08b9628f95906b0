package core

import (
	"context"
	"sort"
	"time"
)

// idSequence hands out principal ids from a single space, mirroring the
// shared database sequence behind the owners and members tables.
type idSequence struct {
	n int64
}

func (s *idSequence) next() int64 {
	s.n++
	return s.n
}

// fakeOwnerRepository is an in-memory OwnerRepository for tests.
type fakeOwnerRepository struct {
	ids    *idSequence
	owners map[int64]*OwnerRecord
}

func newFakeOwnerRepository() *fakeOwnerRepository {
	return &fakeOwnerRepository{ids: &idSequence{}, owners: map[int64]*OwnerRecord{}}
}

// newFakeIdentityStores returns owner and member fakes drawing ids from the
// same sequence, matching production id allocation.
func newFakeIdentityStores() (*fakeOwnerRepository, *fakeMemberRepository) {
	ids := &idSequence{}
	owners := &fakeOwnerRepository{ids: ids, owners: map[int64]*OwnerRecord{}}
	members := &fakeMemberRepository{ids: ids, members: map[int64]*MemberRecord{}, now: time.Now}
	return owners, members
}

func (r *fakeOwnerRepository) FindByEmail(_ context.Context, email string) (*OwnerRecord, error) {
	for _, o := range r.owners {
		if o.Email == email {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeOwnerRepository) FindByID(_ context.Context, id int64) (*OwnerRecord, error) {
	o, ok := r.owners[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOwnerRepository) Create(_ context.Context, name, email, passwordHash, phone string) (*OwnerRecord, error) {
	for _, o := range r.owners {
		if o.Email == email {
			return nil, ErrEmailTaken
		}
	}
	o := &OwnerRecord{
		ID: r.ids.next(), Name: name, Email: email,
		PasswordHash: passwordHash, Phone: phone, CreatedAt: time.Now(),
	}
	r.owners[o.ID] = o
	cp := *o
	return &cp, nil
}

func (r *fakeOwnerRepository) Update(_ context.Context, id int64, upd OwnerUpdate) (*OwnerRecord, error) {
	o, ok := r.owners[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Name != nil {
		o.Name = *upd.Name
	}
	if upd.Email != nil {
		o.Email = *upd.Email
	}
	if upd.Phone != nil {
		o.Phone = *upd.Phone
	}
	cp := *o
	return &cp, nil
}

// fakeMemberRepository is an in-memory MemberRepository for tests.
type fakeMemberRepository struct {
	ids     *idSequence
	members map[int64]*MemberRecord
	now     func() time.Time
}

func newFakeMemberRepository() *fakeMemberRepository {
	return &fakeMemberRepository{ids: &idSequence{}, members: map[int64]*MemberRecord{}, now: time.Now}
}

func (r *fakeMemberRepository) FindByEmail(_ context.Context, email string) (*MemberRecord, error) {
	for _, m := range r.members {
		if m.Email == email && m.DeletedAt == nil {
			cp := *m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeMemberRepository) FindByID(_ context.Context, id int64) (*MemberRecord, error) {
	m, ok := r.members[id]
	if !ok || m.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMemberRepository) FindOwned(_ context.Context, ownerID, memberID int64) (*MemberRecord, error) {
	m, ok := r.members[memberID]
	if !ok || m.DeletedAt != nil || m.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMemberRepository) Create(_ context.Context, name, email, passwordHash, phone string, ownerID int64, expiry time.Time) (*MemberRecord, error) {
	for _, m := range r.members {
		if m.Email == email && m.DeletedAt == nil {
			return nil, ErrEmailTaken
		}
	}
	m := &MemberRecord{
		ID: r.ids.next(), Name: name, Email: email, PasswordHash: passwordHash,
		Phone: phone, OwnerID: ownerID, ExpiryDate: expiry, CreatedAt: r.now(),
	}
	r.members[m.ID] = m
	cp := *m
	return &cp, nil
}

func (r *fakeMemberRepository) Update(_ context.Context, ownerID, memberID int64, upd MemberUpdate) (*MemberRecord, error) {
	m, ok := r.members[memberID]
	if !ok || m.DeletedAt != nil || m.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	if upd.Name != nil {
		m.Name = *upd.Name
	}
	if upd.Email != nil {
		m.Email = *upd.Email
	}
	if upd.Phone != nil {
		m.Phone = *upd.Phone
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMemberRepository) SoftDelete(_ context.Context, ownerID, memberID int64) error {
	m, ok := r.members[memberID]
	if !ok || m.DeletedAt != nil || m.OwnerID != ownerID {
		return ErrNotFound
	}
	now := r.now()
	m.DeletedAt = &now
	return nil
}

func (r *fakeMemberRepository) Renew(_ context.Context, ownerID, memberID int64, months int) (*MemberRecord, error) {
	m, ok := r.members[memberID]
	if !ok || m.DeletedAt != nil || m.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	base := m.ExpiryDate
	if now := r.now(); now.After(base) {
		base = now
	}
	m.ExpiryDate = base.AddDate(0, months, 0)
	cp := *m
	return &cp, nil
}

func (r *fakeMemberRepository) List(_ context.Context, ownerID int64, status string, page, perPage int) ([]MemberListItem, int, error) {
	now := r.now()
	var all []MemberListItem
	for _, m := range r.members {
		if m.OwnerID != ownerID || m.DeletedAt != nil {
			continue
		}
		switch status {
		case "active":
			if now.After(m.ExpiryDate) {
				continue
			}
		case "expired":
			if !now.After(m.ExpiryDate) {
				continue
			}
		}
		all = append(all, MemberListItem{
			ID: m.ID, Name: m.Name, Email: m.Email, Phone: m.Phone,
			ExpiryDate: m.ExpiryDate, CreatedAt: m.CreatedAt,
		})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *fakeMemberRepository) Counts(_ context.Context, ownerID int64) (MemberCounts, error) {
	now := r.now()
	var c MemberCounts
	for _, m := range r.members {
		if m.OwnerID != ownerID || m.DeletedAt != nil {
			continue
		}
		c.Total++
		if now.After(m.ExpiryDate) {
			c.Expired++
		} else {
			c.Active++
		}
	}
	return c, nil
}

// fakeAttendanceRepository is an in-memory AttendanceRepository for tests.
type fakeAttendanceRepository struct {
	seq     int64
	records []AttendanceRecord
	now     func() time.Time
}

func newFakeAttendanceRepository() *fakeAttendanceRepository {
	return &fakeAttendanceRepository{now: time.Now}
}

func (r *fakeAttendanceRepository) Record(_ context.Context, memberID int64) (*AttendanceRecord, error) {
	r.seq++
	a := AttendanceRecord{ID: r.seq, MemberID: memberID, CheckInTime: r.now()}
	r.records = append(r.records, a)
	return &a, nil
}

func (r *fakeAttendanceRepository) ListRecent(_ context.Context, memberID int64, limit int) ([]AttendanceRecord, error) {
	if limit <= 0 {
		limit = 30
	}
	items := make([]AttendanceRecord, 0, limit)
	for i := len(r.records) - 1; i >= 0 && len(items) < limit; i-- {
		if r.records[i].MemberID == memberID {
			items = append(items, r.records[i])
		}
	}
	return items, nil
}

// fakeOrderRepository is an in-memory OrderRepository for tests.
type fakeOrderRepository struct {
	seq    int64
	orders []OrderRecord
	now    func() time.Time
}

func newFakeOrderRepository() *fakeOrderRepository {
	return &fakeOrderRepository{now: time.Now}
}

func (r *fakeOrderRepository) Create(_ context.Context, memberID int64, plan string, months int, priceCents int64) (*OrderRecord, error) {
	r.seq++
	o := OrderRecord{
		ID: r.seq, MemberID: memberID, Plan: plan,
		Months: months, PriceCents: priceCents, OrderDate: r.now(),
	}
	r.orders = append(r.orders, o)
	cp := o
	return &cp, nil
}

func (r *fakeOrderRepository) ListByMember(_ context.Context, memberID int64) ([]OrderRecord, error) {
	var items []OrderRecord
	for i := len(r.orders) - 1; i >= 0; i-- {
		if r.orders[i].MemberID == memberID {
			items = append(items, r.orders[i])
		}
	}
	return items, nil
}

var (
	_ OwnerRepository      = (*fakeOwnerRepository)(nil)
	_ MemberRepository     = (*fakeMemberRepository)(nil)
	_ AttendanceRepository = (*fakeAttendanceRepository)(nil)
	_ OrderRepository      = (*fakeOrderRepository)(nil)
)
