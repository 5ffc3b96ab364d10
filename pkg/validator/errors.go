// Copyright 2025 Certen Protocol

package validator

import "errors"

// Sentinel errors returned by Validate, one per check in the order they
// are evaluated, following pkg/ledger/errors.go's one-file-of-vars idiom.
var (
	ErrInvalidProof                        = errors.New("validator: proof does not verify")
	ErrInvalidElementSize                  = errors.New("validator: element is not below the field modulus")
	ErrTxnInputCommitmentsNotInTree        = errors.New("validator: input commitment not present in tree")
	ErrTxnOutputCommitmentsExist           = errors.New("validator: output commitment already present in tree")
	ErrTxnOutputCommitmentsExistedRecently = errors.New("validator: output commitment was previously inserted and removed")
	ErrMintIsNotInTheContract              = errors.New("validator: mint not found in contract at safe height")
	ErrMintInContractIsDifferent           = errors.New("validator: mint amount/kind mismatch against contract")
	ErrFailedToGetEthBlockNumber           = errors.New("validator: failed to get eth block number")
)
