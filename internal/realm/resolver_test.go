package realm

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func mockResolver(t *testing.T) (*Resolver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	return NewResolver(gdb), mock
}

func TestGroupsScopedToOrganization(t *testing.T) {
	r, mock := mockResolver(t)

	mock.ExpectQuery(`SELECT DISTINCT "group_name" FROM "realms"`).
		WithArgs(uint(7), uint(2), true, uint(55)).
		WillReturnRows(sqlmock.NewRows([]string{"group_name"}).
			AddRow("UNICEF User").
			AddRow("Auditor"))

	org := uint(55)
	groups, err := r.Groups(context.Background(), 7, 2, &org)
	require.NoError(t, err)
	// sorted for stable comparison downstream
	assert.Equal(t, []string{"Auditor", "UNICEF User"}, groups)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupsUnionAcrossOrganizations(t *testing.T) {
	r, mock := mockResolver(t)

	mock.ExpectQuery(`SELECT DISTINCT "group_name" FROM "realms"`).
		WithArgs(uint(7), uint(2), true).
		WillReturnRows(sqlmock.NewRows([]string{"group_name"}))

	groups, err := r.Groups(context.Background(), 7, 2, nil)
	require.NoError(t, err)
	assert.Empty(t, groups)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasAnyRealm(t *testing.T) {
	r, mock := mockResolver(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "realms"`).
		WithArgs(uint(7), true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	ok, err := r.HasAnyRealm(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "realms"`).
		WithArgs(uint(7), true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	ok, err = r.HasAnyRealm(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeDeactivates(t *testing.T) {
	r, mock := mockResolver(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "realms" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := r.Revoke(context.Background(), 7, 2, 55, "Auditor")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
