package ledger

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const tokenABIJSON = `[
  {
    "inputs": [],
    "name": "poolIdCounter",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "poolId", "type": "uint256"}],
    "name": "getPlayerStats",
    "outputs": [
      {
        "components": [
          {"internalType": "string", "name": "playerName", "type": "string"},
          {"internalType": "uint256", "name": "matches", "type": "uint256"},
          {"internalType": "uint256", "name": "runs", "type": "uint256"},
          {"internalType": "uint256", "name": "wickets", "type": "uint256"},
          {"internalType": "uint256", "name": "fifties", "type": "uint256"},
          {"internalType": "uint256", "name": "centuries", "type": "uint256"},
          {"internalType": "string", "name": "strikeRate", "type": "string"},
          {"internalType": "string", "name": "category", "type": "string"},
          {"internalType": "string", "name": "role", "type": "string"},
          {"internalType": "string", "name": "image", "type": "string"},
          {"internalType": "string", "name": "date", "type": "string"}
        ],
        "internalType": "struct Custom721.PlayerStats",
        "name": "",
        "type": "tuple"
      }
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "poolId", "type": "uint256"},
      {
        "components": [
          {"internalType": "string", "name": "playerName", "type": "string"},
          {"internalType": "uint256", "name": "matches", "type": "uint256"},
          {"internalType": "uint256", "name": "runs", "type": "uint256"},
          {"internalType": "uint256", "name": "wickets", "type": "uint256"},
          {"internalType": "uint256", "name": "fifties", "type": "uint256"},
          {"internalType": "uint256", "name": "centuries", "type": "uint256"},
          {"internalType": "string", "name": "strikeRate", "type": "string"},
          {"internalType": "string", "name": "category", "type": "string"},
          {"internalType": "string", "name": "role", "type": "string"},
          {"internalType": "string", "name": "image", "type": "string"},
          {"internalType": "string", "name": "date", "type": "string"}
        ],
        "internalType": "struct Custom721.PlayerStats",
        "name": "stats",
        "type": "tuple"
      }
    ],
    "name": "updatePlayerStats",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {
        "components": [
          {"internalType": "string", "name": "playerName", "type": "string"},
          {"internalType": "uint256", "name": "matches", "type": "uint256"},
          {"internalType": "uint256", "name": "runs", "type": "uint256"},
          {"internalType": "uint256", "name": "wickets", "type": "uint256"},
          {"internalType": "uint256", "name": "fifties", "type": "uint256"},
          {"internalType": "uint256", "name": "centuries", "type": "uint256"},
          {"internalType": "string", "name": "strikeRate", "type": "string"},
          {"internalType": "string", "name": "category", "type": "string"},
          {"internalType": "string", "name": "role", "type": "string"},
          {"internalType": "string", "name": "image", "type": "string"},
          {"internalType": "string", "name": "date", "type": "string"}
        ],
        "internalType": "struct Custom721.PlayerStats",
        "name": "stats",
        "type": "tuple"
      },
      {"internalType": "uint256", "name": "price", "type": "uint256"},
      {"internalType": "uint256", "name": "maxSupply", "type": "uint256"}
    ],
    "name": "createPool",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "poolId", "type": "uint256"}],
    "name": "getSupplyInfo",
    "outputs": [
      {"internalType": "uint256", "name": "minted", "type": "uint256"},
      {"internalType": "uint256", "name": "maxSupply", "type": "uint256"},
      {"internalType": "uint256", "name": "price", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "poolId", "type": "uint256"},
      {"internalType": "uint256", "name": "quantity", "type": "uint256"}
    ],
    "name": "mintFromAvailable",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "tokenId", "type": "uint256"}],
    "name": "tokenToPoolId",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "tokenId", "type": "uint256"}],
    "name": "tokenURI",
    "outputs": [{"internalType": "string", "name": "", "type": "string"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "address", "name": "owner", "type": "address"}],
    "name": "balanceOf",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "owner", "type": "address"},
      {"internalType": "uint256", "name": "index", "type": "uint256"}
    ],
    "name": "tokenOfOwnerByIndex",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "owner", "type": "address"},
      {"internalType": "address", "name": "operator", "type": "address"}
    ],
    "name": "isApprovedForAll",
    "outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "operator", "type": "address"},
      {"internalType": "bool", "name": "approved", "type": "bool"}
    ],
    "name": "setApprovalForAll",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const marketABIJSON = `[
  {
    "inputs": [
      {"internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"internalType": "uint256", "name": "price", "type": "uint256"}
    ],
    "name": "listNFT",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "tokenId", "type": "uint256"}],
    "name": "cancelListing",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "tokenId", "type": "uint256"}],
    "name": "buyNFT",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getAllListings",
    "outputs": [
      {"internalType": "uint256[]", "name": "tokenIds", "type": "uint256[]"},
      {
        "components": [
          {"internalType": "address", "name": "seller", "type": "address"},
          {"internalType": "uint256", "name": "price", "type": "uint256"},
          {"internalType": "uint256", "name": "timestamp", "type": "uint256"}
        ],
        "internalType": "struct Marketplace.Listing[]",
        "name": "listings",
        "type": "tuple[]"
      }
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const paymentABIJSON = `[
  {
    "inputs": [{"internalType": "address", "name": "owner", "type": "address"}],
    "name": "balanceOf",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "owner", "type": "address"},
      {"internalType": "address", "name": "spender", "type": "address"}
    ],
    "name": "allowance",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "spender", "type": "address"},
      {"internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "approve",
    "outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "decimals",
    "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	tokenABIValue   abi.ABI
	tokenABIOnce    sync.Once
	tokenABIErr     error
	marketABIValue  abi.ABI
	marketABIOnce   sync.Once
	marketABIErr    error
	paymentABIValue abi.ABI
	paymentABIOnce  sync.Once
	paymentABIErr   error
)

// TokenABI returns the parsed token contract ABI.
func TokenABI() (abi.ABI, error) {
	tokenABIOnce.Do(func() {
		tokenABIValue, tokenABIErr = abi.JSON(strings.NewReader(tokenABIJSON))
	})
	return tokenABIValue, tokenABIErr
}

// MarketABI returns the parsed marketplace ABI.
func MarketABI() (abi.ABI, error) {
	marketABIOnce.Do(func() {
		marketABIValue, marketABIErr = abi.JSON(strings.NewReader(marketABIJSON))
	})
	return marketABIValue, marketABIErr
}

// PaymentABI returns the parsed payment token ABI.
func PaymentABI() (abi.ABI, error) {
	paymentABIOnce.Do(func() {
		paymentABIValue, paymentABIErr = abi.JSON(strings.NewReader(paymentABIJSON))
	})
	return paymentABIValue, paymentABIErr
}
