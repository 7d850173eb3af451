// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package nodenet

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const blockSeparatorPrefix = "-----"

var (
	proposeOutputRegex = regexp.MustCompile(`Success! Block ([0-9a-fA-F]+)(?:\.\.\.)? created and added`)
	fieldRegex         = regexp.MustCompile(`^\s*([A-Za-z_]+)\s*:\s*"?([^"]*)"?\s*$`)
)

// ExtractBlockHash returns the block hash prefix reported by a successful
// propose, e.g. "Response: Success! Block a91208047c... created and added."
func ExtractBlockHash(proposeOutput string) (HashPrefix, error) {
	match := proposeOutputRegex.FindStringSubmatch(proposeOutput)
	if match == nil {
		return "", fmt.Errorf("%w: %q", ErrUnexpectedProposeOutput, strings.TrimSpace(proposeOutput))
	}
	return ToHashPrefix(match[1]), nil
}

// DeploySucceeded reports whether deploy output carries the success marker.
func DeploySucceeded(deployOutput string) bool {
	return strings.Contains(deployOutput, DeploySuccessMarker)
}

// ParseShowBlocks parses show-blocks output. Blocks are separated by lines
// of dashes; lines outside a block (e.g. a trailing count) are ignored.
func ParseShowBlocks(output string) ([]BlockRecord, error) {
	var (
		blocks  []BlockRecord
		current *BlockRecord
	)
	flush := func() {
		if current != nil && len(current.Hash) > 0 {
			blocks = append(blocks, *current)
		}
		current = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), blockSeparatorPrefix) {
			flush()
			continue
		}
		match := fieldRegex.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		if current == nil {
			current = &BlockRecord{}
		}
		key, value := match[1], strings.TrimSpace(match[2])
		switch key {
		case "block_hash", "blockHash":
			current.Hash = value
		case "parent_hashes", "parentsHashList":
			current.Parents = append(current.Parents, value)
		case "rank", "blockNumber":
			rank, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid rank %q: %w", value, err)
			}
			current.Rank = rank
		case "validator_public_key", "sender":
			current.ValidatorID = value
		case "deploy_count", "deployCount":
			count, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid deploy count %q: %w", value, err)
			}
			current.DeployCount = count
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return blocks, nil
}
