package bot

import (
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// formatLogMessage prefixes a log line with the server and the acting user.
func formatLogMessage(guildID, message, user, serverName string) string {
	var prefix strings.Builder
	switch {
	case serverName != "" && guildID != "":
		prefix.WriteString(fmt.Sprintf("[%s (%s)]", serverName, guildID))
	case guildID != "":
		prefix.WriteString(fmt.Sprintf("[%s]", guildID))
	default:
		prefix.WriteString("[global]")
	}
	if user != "" {
		prefix.WriteString(fmt.Sprintf(" [%s]", user))
	}
	return prefix.String() + " " + message
}

// getServerName returns the guild name, falling back to its ID.
func getServerName(s *discordgo.Session, guildID string) string {
	if guildID == "" {
		return ""
	}
	if g, err := s.State.Guild(guildID); err == nil && g.Name != "" {
		return g.Name
	}
	if g, err := s.Guild(guildID); err == nil {
		return g.Name
	}
	return guildID
}

// respondWithError sends an error response to the user
func respondWithError(s *discordgo.Session, i *discordgo.InteractionCreate, errMsg string) {
	respondWithSuccess(s, i, "Error: "+errMsg)
}

// respondWithSuccess sends a success response to the user
func respondWithSuccess(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Println(formatLogMessage(i.GuildID, "Error responding to interaction: "+err.Error(), "", ""))
	}
}

// deferResponse acknowledges a command that may take longer than the
// interaction deadline. The answer follows through editResponse.
func deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Println(formatLogMessage(i.GuildID, "Error acknowledging interaction: "+err.Error(), "", ""))
		return false
	}
	return true
}

func editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &msg}); err != nil {
		log.Println(formatLogMessage(i.GuildID, "Error editing interaction response: "+err.Error(), "", ""))
	}
}

// logCommand logs command execution to console
func logCommand(s *discordgo.Session, i *discordgo.InteractionCreate, commandName string, details ...string) {
	var username string
	if i.Member != nil && i.Member.User != nil {
		username = i.Member.User.Username
	} else if i.User != nil {
		username = i.User.Username
	} else {
		username = "unknown"
	}

	var params []string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Type == discordgo.ApplicationCommandOptionString {
			params = append(params, fmt.Sprintf("%s:%s", opt.Name, opt.StringValue()))
		}
	}

	logMessage := fmt.Sprintf("%s executed /%s", username, commandName)
	if len(params) > 0 {
		logMessage += fmt.Sprintf(" [%s]", strings.Join(params, ", "))
	}
	if len(details) > 0 {
		logMessage += fmt.Sprintf(" (%s)", strings.Join(details, " "))
	}

	log.Println(formatLogMessage(i.GuildID, logMessage, "", getServerName(s, i.GuildID)))
}

// hasPermission reports whether userID holds perm in guildID. Guild owners
// and administrators hold every permission.
func hasPermission(s *discordgo.Session, guildID, userID string, perm int64) bool {
	if guildID == "" {
		return false
	}
	guild, err := s.State.Guild(guildID)
	if err != nil {
		if guild, err = s.Guild(guildID); err != nil {
			log.Printf("Error getting guild: %v", err)
			return false
		}
	}
	member, err := s.State.Member(guildID, userID)
	if err != nil {
		if member, err = s.GuildMember(guildID, userID); err != nil {
			log.Printf("Error getting guild member: %v", err)
			return false
		}
	}
	return memberPermissions(guild, userID, member.Roles)&perm == perm
}

// memberPermissions folds the @everyone role and the member's roles into
// one permission set.
func memberPermissions(guild *discordgo.Guild, userID string, roleIDs []string) int64 {
	if guild.OwnerID == userID {
		return discordgo.PermissionAll
	}

	held := make(map[string]bool, len(roleIDs)+1)
	held[guild.ID] = true
	for _, id := range roleIDs {
		held[id] = true
	}

	var perms int64
	for _, role := range guild.Roles {
		if held[role.ID] {
			perms |= role.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return discordgo.PermissionAll
	}
	return perms
}

// isAdmin checks if a user may manage the server
func isAdmin(s *discordgo.Session, guildID string, userID string) bool {
	if hasPermission(s, guildID, userID, discordgo.PermissionManageServer) {
		return true
	}
	log.Printf("User %s is not an admin in guild %s", userID, guildID)
	return false
}

// formatTable creates a Discord-friendly table with fixed-width columns
func formatTable(headers []string, rows [][]string) string {
	// Find the maximum width for each column
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = len([]rune(header))
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := len([]rune(cell)); i < len(widths) && n > widths[i] {
				widths[i] = n
			}
		}
	}

	var result strings.Builder
	result.WriteString("```\n")
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i >= len(widths) {
				break
			}
			result.WriteString(cell)
			result.WriteString(strings.Repeat(" ", widths[i]+2-len([]rune(cell))))
		}
		result.WriteString("\n")
	}

	writeRow(headers)
	for _, width := range widths {
		result.WriteString(strings.Repeat("-", width+2))
	}
	result.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}
	result.WriteString("```")

	return result.String()
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
