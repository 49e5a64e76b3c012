package utils

import (
	"math/rand"
	"time"
)

const meetingCodeLength = 10
const letterBytes = "abcdefghijklmnopqrstuvwxyz0123456789"

var seededRand = rand.New(rand.NewSource(time.Now().UnixNano()))

func GenerateMeetingCode() string {
	b := make([]byte, meetingCodeLength)
	for i := range b {
		b[i] = letterBytes[seededRand.Intn(len(letterBytes))]
	}
	return string(b)
}
