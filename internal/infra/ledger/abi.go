package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// RegistryABI is the interface of the document registry contract.
const RegistryABI = `[
  {"type":"function","name":"storeDocument","stateMutability":"nonpayable",
   "inputs":[{"name":"documentId","type":"bytes32"},{"name":"documentHash","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"verifyDocument","stateMutability":"view",
   "inputs":[{"name":"documentId","type":"bytes32"},{"name":"documentHash","type":"string"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getDocument","stateMutability":"view",
   "inputs":[{"name":"documentId","type":"bytes32"}],
   "outputs":[{"name":"hash","type":"string"},{"name":"creator","type":"address"},{"name":"timestamp","type":"uint256"},{"name":"exists","type":"bool"}]},
  {"type":"event","name":"DocumentStored","anonymous":false,
   "inputs":[{"name":"documentId","type":"bytes32","indexed":true},{"name":"documentHash","type":"string","indexed":false},{"name":"creator","type":"address","indexed":true},{"name":"timestamp","type":"uint256","indexed":false}]}
]`

const (
	methodStore  = "storeDocument"
	methodVerify = "verifyDocument"
	methodGet    = "getDocument"
)

func parseRegistryABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(RegistryABI))
}

// DocumentKey maps an application document id to the contract's bytes32 key.
func DocumentKey(documentID string) [32]byte {
	return crypto.Keccak256Hash([]byte(documentID))
}
