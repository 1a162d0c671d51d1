// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
)

const bashCompletion = `_cie_completions() {
    local cur prev commands
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"
    commands="init trust cache config completion"

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "${commands}" -- "${cur}") )
        return 0
    fi

    case "${prev}" in
        trust)
            COMPREPLY=( $(compgen -W "add remove list clear check" -- "${cur}") )
            ;;
        cache)
            COMPREPLY=( $(compgen -W "stats clear" -- "${cur}") )
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh fish" -- "${cur}") )
            ;;
    esac
}
complete -F _cie_completions cie
`

const zshCompletion = `#compdef cie

_cie() {
    local -a commands
    commands=(
        'init:Create .cie/project.yaml configuration'
        'trust:Manage per-directory trust decisions'
        'cache:Inspect or clear the hybrid content cache'
        'config:Show effective configuration'
        'completion:Generate shell completion script'
    )

    if (( CURRENT == 2 )); then
        _describe 'command' commands
        return
    fi

    case "${words[2]}" in
        trust)
            _values 'trust subcommand' add remove list clear check
            ;;
        cache)
            _values 'cache subcommand' stats clear
            ;;
        completion)
            _values 'shell' bash zsh fish
            ;;
    esac
}
_cie
`

const fishCompletion = `complete -c cie -f
complete -c cie -n '__fish_use_subcommand' -a init -d 'Create .cie/project.yaml configuration'
complete -c cie -n '__fish_use_subcommand' -a trust -d 'Manage per-directory trust decisions'
complete -c cie -n '__fish_use_subcommand' -a cache -d 'Inspect or clear the hybrid content cache'
complete -c cie -n '__fish_use_subcommand' -a config -d 'Show effective configuration'
complete -c cie -n '__fish_use_subcommand' -a completion -d 'Generate shell completion script'

complete -c cie -n '__fish_seen_subcommand_from trust' -a 'add remove list clear check'
complete -c cie -n '__fish_seen_subcommand_from cache' -a 'stats clear'
complete -c cie -n '__fish_seen_subcommand_from completion' -a 'bash zsh fish'
`

// runCompletion writes a static completion script for the requested shell
// to stdout.
func runCompletion(args []string, globals GlobalFlags) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: cie completion <bash|zsh|fish>")
		os.Exit(1)
	}

	switch args[0] {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unsupported shell: %s (want bash, zsh, or fish)\n", args[0])
		os.Exit(1)
	}
}
