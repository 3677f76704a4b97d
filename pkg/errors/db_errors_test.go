package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestClassifyDBError_Nil(t *testing.T) {
	assert.Nil(t, ClassifyDBError(nil))

	var dbErr *DatabaseError
	assert.False(t, dbErr.Transient())
}

func TestClassifyDBError_GORMRecordNotFound(t *testing.T) {
	dbErr := ClassifyDBError(fmt.Errorf("lookup: %w", gorm.ErrRecordNotFound))

	require.NotNil(t, dbErr)
	assert.Equal(t, ErrorTypeNotFound, dbErr.Type)
	assert.Equal(t, "record not found", dbErr.Message)
	assert.True(t, errors.Is(dbErr, gorm.ErrRecordNotFound))
	assert.False(t, dbErr.Transient())
}

func TestClassifyDBError_MySQLCodes(t *testing.T) {
	tests := []struct {
		name      string
		code      uint16
		wantType  DatabaseErrorType
		transient bool
	}{
		{name: "duplicate entry", code: 1062, wantType: ErrorTypeDuplicateKey},
		{name: "data too long", code: 1406, wantType: ErrorTypeDataTooLong},
		{name: "null column", code: 1048, wantType: ErrorTypeInvalidValue},
		{name: "truncated value", code: 1366, wantType: ErrorTypeInvalidValue},
		{name: "deadlock", code: 1213, wantType: ErrorTypeDeadlock, transient: true},
		{name: "lock wait timeout", code: 1205, wantType: ErrorTypeDeadlock, transient: true},
		{name: "too many connections", code: 1040, wantType: ErrorTypeConnectionError, transient: true},
		{name: "unknown code", code: 1146, wantType: ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbErr := ClassifyDBError(&mysql.MySQLError{Number: tt.code, Message: tt.name})

			require.NotNil(t, dbErr)
			assert.Equal(t, tt.wantType, dbErr.Type)
			assert.Equal(t, tt.code, dbErr.MySQLErrCode)
			assert.Equal(t, tt.transient, dbErr.Transient())
			assert.Contains(t, dbErr.Error(), fmt.Sprintf("MySQL error %d", tt.code))
		})
	}
}

func TestClassifyDBError_ConnectionErrors(t *testing.T) {
	tests := []error{
		errors.New("dial tcp 127.0.0.1:3306: connect: Connection Refused"),
		errors.New("read tcp: i/o timeout"),
		mysql.ErrInvalidConn,
	}

	for _, err := range tests {
		dbErr := ClassifyDBError(err)
		assert.Equal(t, ErrorTypeConnectionError, dbErr.Type, err.Error())
		assert.True(t, dbErr.Transient())
	}
}

func TestClassifyDBError_Unknown(t *testing.T) {
	dbErr := ClassifyDBError(errors.New("something odd"))

	assert.Equal(t, ErrorTypeUnknown, dbErr.Type)
	assert.Equal(t, "unknown database error: something odd", dbErr.Error())
}

func TestDatabaseErrorType_String(t *testing.T) {
	assert.Equal(t, "deadlock", ErrorTypeDeadlock.String())
	assert.Equal(t, "connection", ErrorTypeConnectionError.String())
	assert.Equal(t, "unknown", DatabaseErrorType(99).String())
}
