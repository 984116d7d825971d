package service

import (
	"crypto/rand"
	"math/big"
)

var (
	nameAdjectives = []string{
		"Brave", "Calm", "Clever", "Cosmic", "Dizzy", "Fuzzy", "Groovy", "Happy",
		"Jazzy", "Lucky", "Mellow", "Noisy", "Quick", "Sneaky", "Sunny", "Witty",
	}
	nameNouns = []string{
		"Badger", "Banjo", "Falcon", "Fox", "Koala", "Llama", "Otter", "Panda",
		"Penguin", "Piano", "Raccoon", "Tiger", "Trumpet", "Walrus", "Yak", "Zebra",
	}
)

// randomDisplayName returns a name like "Groovy Otter"
func randomDisplayName() string {
	return pick(nameAdjectives) + " " + pick(nameNouns)
}

func pick(words []string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return words[0]
	}
	return words[n.Int64()]
}
