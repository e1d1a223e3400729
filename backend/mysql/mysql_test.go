package mysql

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/backend/test"
)

const testUser = "root"
const testPassword = "root"

// Creating and dropping databases is inefficient, but gives complete isolation between tests.

func Test_MysqlBackend(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}

	var dbName string

	test.BackendTest(t, func(options ...backend.BackendOption) test.TestBackend {
		dbName = createDatabase()

		options = append(options,
			backend.WithWorkflowLockTimeout(5*time.Second),
			backend.WithActivityLockTimeout(10*time.Second),
		)

		return NewMysqlBackend("localhost", 3306, testUser, testPassword, dbName, WithBackendOptions(options...))
	}, func(b test.TestBackend) {
		if err := b.Close(); err != nil {
			panic(err)
		}

		dropDatabase(dbName)
	})
}

func Test_EndToEndMysqlBackend(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}

	var dbName string

	test.EndToEndBackendTest(t, func(options ...backend.BackendOption) test.TestBackend {
		dbName = createDatabase()

		return NewMysqlBackend("localhost", 3306, testUser, testPassword, dbName, WithBackendOptions(options...))
	}, func(b test.TestBackend) {
		if err := b.Close(); err != nil {
			panic(err)
		}

		dropDatabase(dbName)
	})
}

func createDatabase() string {
	db, err := sql.Open("mysql", fmt.Sprintf("%s:%s@/?parseTime=true&interpolateParams=true", testUser, testPassword))
	if err != nil {
		panic(err)
	}
	defer db.Close()

	dbName := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := db.Exec("CREATE DATABASE " + dbName); err != nil {
		panic(fmt.Errorf("creating database: %w", err))
	}

	return dbName
}

func dropDatabase(dbName string) {
	db, err := sql.Open("mysql", fmt.Sprintf("%s:%s@/?parseTime=true&interpolateParams=true", testUser, testPassword))
	if err != nil {
		panic(err)
	}
	defer db.Close()

	if _, err := db.Exec("DROP DATABASE IF EXISTS " + dbName); err != nil {
		panic(fmt.Errorf("dropping database: %w", err))
	}
}
