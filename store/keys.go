package store

import "encoding/binary"

// Table prefixes for the logical tables of spec §4.2. Every key below is
// prefix ‖ big-endian-sortable suffix, so a prefix iterator walks a table in
// numeric/lexicographic key order.
const (
	tableBlocks       byte = 0x01
	tableAccounts     byte = 0x02
	tablePending      byte = 0x03
	tableConfHeight   byte = 0x04
	tableFrontiers    byte = 0x05
	tablePruned       byte = 0x06
	tableOnlineWeight byte = 0x07
	tablePeers        byte = 0x08
	tableVersion      byte = 0x09
)

// BlocksKey builds the key for the blocks table: block hash -> block bytes
// ‖ sideband.
func BlocksKey(hash [32]byte) []byte {
	return append([]byte{tableBlocks}, hash[:]...)
}

// BlocksPrefix is the iteration prefix for the whole blocks table.
func BlocksPrefix() []byte { return []byte{tableBlocks} }

// AccountsKey builds the key for the accounts table: account -> account info.
func AccountsKey(account [32]byte) []byte {
	return append([]byte{tableAccounts}, account[:]...)
}

func AccountsPrefix() []byte { return []byte{tableAccounts} }

// PendingKey builds the key for the pending table: (destination, send hash)
// -> (source, amount, source epoch).
func PendingKey(destination, sendHash [32]byte) []byte {
	k := make([]byte, 0, 1+32+32)
	k = append(k, tablePending)
	k = append(k, destination[:]...)
	k = append(k, sendHash[:]...)
	return k
}

// PendingPrefixForAccount iterates every pending entry addressed to account.
func PendingPrefixForAccount(destination [32]byte) []byte {
	k := make([]byte, 0, 1+32)
	k = append(k, tablePending)
	k = append(k, destination[:]...)
	return k
}

// ConfirmationHeightKey builds the key for the confirmation_height table:
// account -> (height, frontier).
func ConfirmationHeightKey(account [32]byte) []byte {
	return append([]byte{tableConfHeight}, account[:]...)
}

func ConfirmationHeightPrefix() []byte { return []byte{tableConfHeight} }

// FrontiersKey builds the key for the legacy-compat frontiers table:
// frontier (previous) hash -> account.
func FrontiersKey(frontier [32]byte) []byte {
	return append([]byte{tableFrontiers}, frontier[:]...)
}

// PrunedKey builds the key for the pruned table: block hash -> ∅.
func PrunedKey(hash [32]byte) []byte {
	return append([]byte{tablePruned}, hash[:]...)
}

func PrunedPrefix() []byte { return []byte{tablePruned} }

// OnlineWeightKey builds the key for the online_weight table: timestamp ->
// trended stake sample. Big-endian so iteration order matches time order.
func OnlineWeightKey(unixSeconds int64) []byte {
	k := make([]byte, 9)
	k[0] = tableOnlineWeight
	binary.BigEndian.PutUint64(k[1:], uint64(unixSeconds))
	return k
}

func OnlineWeightPrefix() []byte { return []byte{tableOnlineWeight} }

// PeersKey builds the key for the peers table: endpoint -> last-seen.
func PeersKey(endpoint string) []byte {
	return append([]byte{tablePeers}, []byte(endpoint)...)
}

func PeersPrefix() []byte { return []byte{tablePeers} }

// VersionKey is the single key of the version table.
func VersionKey() []byte { return []byte{tableVersion} }
