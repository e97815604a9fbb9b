package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestIsDuplicateKey(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'env-1-a@b.c' for key 'ux_processed_envelope_recipient'"}

	assert.True(t, isDuplicateKey(dup))
	assert.True(t, isDuplicateKey(fmt.Errorf("insert processed: %w", dup)))

	assert.False(t, isDuplicateKey(&mysql.MySQLError{Number: 1452, Message: "foreign key"}))
	assert.False(t, isDuplicateKey(errors.New("Duplicate entry")))
	assert.False(t, isDuplicateKey(nil))
}
