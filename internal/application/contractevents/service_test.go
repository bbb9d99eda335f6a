package contractevents

import (
	"context"
	"testing"

	"stackyard-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupEventsTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Org{}, &domain.ContractEvent{}))
	return &Service{DB: db}, db
}

func TestGetOrgContractEvents(t *testing.T) {
	svc, db := setupEventsTest(t)
	org := &domain.Org{OrgName: "Bar W Hay Co", OrgCode: "BARW", CountryCode: "US"}
	require.NoError(t, db.Create(org).Error)

	subject := uuid.New()
	code := "BARW"
	other := "OTHR"
	require.NoError(t, db.Create(&domain.ContractEvent{
		SubjectType: domain.SubjectThread, SubjectID: subject, EventType: "PROPOSED",
		EventData: []byte(`{}`), ActorOrgCode: &code,
	}).Error)
	require.NoError(t, db.Create(&domain.ContractEvent{
		SubjectType: domain.SubjectThread, SubjectID: subject, EventType: "COUNTERED",
		EventData: []byte(`{}`), ActorOrgCode: &other,
	}).Error)

	events, err := svc.GetOrgContractEvents(context.Background(), org.OrgID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "PROPOSED", events[0].EventType)

	_, err = svc.GetOrgContractEvents(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetSubjectEvents(t *testing.T) {
	svc, db := setupEventsTest(t)
	subject := uuid.New()
	require.NoError(t, db.Create(&domain.ContractEvent{
		SubjectType: domain.SubjectOrder, SubjectID: subject, EventType: "DRAFT_CREATED",
		EventData: []byte(`{}`),
	}).Error)
	require.NoError(t, db.Create(&domain.ContractEvent{
		SubjectType: domain.SubjectOrder, SubjectID: uuid.New(), EventType: "SIGNED",
		EventData: []byte(`{}`),
	}).Error)

	events, err := svc.GetSubjectEvents(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "DRAFT_CREATED", events[0].EventType)
}
