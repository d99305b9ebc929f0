package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

var ErrorImportInProgress = errors.New("another import holds the lock")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
