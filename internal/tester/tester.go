// Package tester provides shared test scaffolding: a throwaway sqlite
// database, a temp artifact root, and fake capability adapters so pipeline
// behavior is testable without external services.
package tester

import (
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ianbrucey/war-room-sub000/internal/model"
)

const (
	testPath = "../../.test/"
)

var (
	db *gorm.DB
)

func Setup() {
	RemoveDBFile()

	_ = os.Setenv("ENV", "test")

	err := os.MkdirAll(testPath+"/db", os.ModePerm)
	if err != nil {
		panic(err)
	}

	db, err = gorm.Open(sqlite.Open(testPath+"db/intake.db"), &gorm.Config{TranslateError: true})
	if err != nil {
		panic(err)
	}

	err = model.Migrate(db)
	if err != nil {
		panic(err)
	}
}

func TestDB() *gorm.DB {
	return db
}

// ArtifactDir creates a fresh artifact root for a test.
func ArtifactDir() string {
	dir, err := os.MkdirTemp(testPath, "artifacts-*")
	if err != nil {
		panic(err)
	}
	return dir
}

func RemoveDBFile() {
	err := os.RemoveAll(testPath)
	if err != nil {
		panic(err)
	}
}
