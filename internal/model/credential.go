package model

type StoredCredential struct {
	Key   string
	Value string
	Tier  Tier
}
