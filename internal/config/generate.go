package config

// DefaultConfigTOML is a complete, commented sample warden.toml emitted by
// `wardend init`.
const DefaultConfigTOML = `# Warden configuration file

[main]
# name = "warden"              # daemon identifier, used in logs
# pidfile = "/var/run/warden.pid"
# daemon = false                # double-fork into the background
# umask = ""                    # accepted but not applied by wardend run
# user = ""                     # accepted but not applied; use wardend run --user uid[:gid]
# group = ""                    # accepted but not applied
# directory = ""                # accepted but not applied
# log_level = "info"            # debug, info, warn, error
# log_format = "json"           # json, text

[web]
# enabled = false               # serve the REST + SSE control surface
# listen = "127.0.0.1:9876"
# username = ""                 # HTTP Basic Auth username
# password = ""                 # bcrypt-hashed password

# Process definitions
# [programs.example]
# command = ["/usr/bin/example", "--flag"]  # argument vector
# command_line = ""             # alternative: single string, needs shell=true
# shell = false
# autostart = true              # start on daemon startup
# startsecs = 1                 # seconds before considered started
# startretries = 3              # additional attempts after the first
# exitcodes = [0]               # accepted clean-exit codes
# stopsignal = "TERM"           # TERM, HUP, INT, QUIT, KILL, USR1, USR2, STOP, CONT
# stopwaitsecs = 10             # grace period before SIGKILL
# user = ""                     # run as uid[:gid]
# directory = ""                # working directory
# umask = ""                    # file creation mask, octal
# [programs.example.environment]
# KEY = "value"
# [programs.example.resources]
# nofile = 65536

# Webhook definitions
# [webhooks.slack]
# url = "https://hooks.slack.com/..."
# topics = ["process_state", "server_state"]
# timeout_secs = 5
# max_retries = 3
# [webhooks.slack.headers]
# Authorization = "Bearer token"
`
