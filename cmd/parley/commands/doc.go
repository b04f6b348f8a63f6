// Package commands defines the parley CLI.
//
// Commands
//
//   - signup, login, logout, whoami   Manage the saved login for --server
//   - fingerprint                     Print your identity key fingerprint
//   - users                           List other accounts and who is online
//   - history <peer>                  Show a decrypted conversation
//   - send <peer> <text>              Encrypt and send one message
//   - chat <peer>                     Interactive conversation over the live socket
//   - edit, delete                    Change a message you sent
//   - pin, unpin, archive, unarchive  Organise chats
//   - group ...                       Create, join and talk in groups
//
// Flags may also be set through PARLEY_* environment variables or a .env file.
package commands
