// Package chat contains the optional Twitch IRC command listener.
//
// The listener joins TWITCH_CHANNEL as TWITCH_BOT_USERNAME and watches every
// PRIVMSG. When the first word of a message is one of the allow-listed
// commands (CHAT_COMMANDS, default !clip), the rest of the line becomes the
// command message and the request goes to the command dispatcher. The reply
// meant for the caller is said back in the channel.
//
// Credentials: the IRC client requires a bot username and an OAuth token with
// chat:read/chat:edit scopes. The token may be given with or without the
// "oauth:" prefix.
package chat
