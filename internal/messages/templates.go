package messages

// General.
const (
	Help = "*GoRoute Help Center*\n\n" +
		"🎫 *Passengers*\n" +
		"• `book bus` search routes\n" +
		"• `show seats BUSID`\n" +
		"• `book seat BUSID 3A`\n" +
		"• `my bookings` / `get ticket BOOKID` / `check status BOOKID`\n" +
		"• `cancel booking BOOKID`\n" +
		"• `track bus BUSID`\n" +
		"• `alert on FROM to TO @ HH:MM`\n" +
		"• `my profile` / `update phone`\n"
	HelpManager = "\n🚌 *Managers*\n" +
		"• `add bus` / `add seats BUSID COUNT`\n" +
		"• `show my trips` / `show manifest BUSID`\n" +
		"• `start tracking` / `stop tracking BUSID`\n" +
		"• `check-in BOOKID` / `release seat BUSID SEAT`\n" +
		"• `sync inventory`\n"
	HelpOwner = "\n👑 *Owners*\n" +
		"• `assign manager CHAT_ID` / `revoke manager CHAT_ID`\n" +
		"• `show revenue [YYYY-MM-DD]`\n" +
		"• `set status BUSID STATUS`\n" +
		"• `setup aadhar api` / `show aadhar api config`\n" +
		"• `show fare alerts`\n"

	WelcomeBack    = "👋 Welcome back, {name}!"
	FeatureWIP     = "🚧 This feature is coming soon!"
	UnknownCommand = "🤔 I don't understand that command. Type */help* for a list of available options."
	InternalError  = "❌ Something went wrong on our side. Please try again in a moment."
	NotAllowed     = "❌ You do not have permission to do that."
	RegisterFirst  = "❌ You must register first. Send /start."
	ShareLocation  = "👨‍👩‍👧‍👦 *Personal Location Sharing:* This feature requires deep integration with your device's GPS and is under development. Please check back later!"
)

// Registration and profile.
const (
	PromptRole = "🎉 *Welcome to GoRoute!* To get started, please choose your role by *typing the corresponding number*:\n\n" +
		"1. User (Book Tickets)\n2. Bus Manager (Manage Buses)\n3. Bus Owner (Manage Staff)"
	RoleInvalid         = "❌ Please reply with *1*, *2* or *3*."
	RegistrationStarted = "✅ Great! Your role is set to *{role}*.\n\nTo complete your profile, please provide your details in this exact format:\n\n" +
		"`my profile details [Your Full Name] / [Your Aadhar Number] / [Your Phone Number]`"
	ProfileUpdated      = "✅ *Profile Updated!* Your details have been saved."
	ProfileUpdateError  = "❌ *Error!* Please use the correct format:\n`my profile details [Name] / [Aadhar Number] / [Phone Number]`"
	ProfileView         = "👤 *Your Profile*\n\nName: {name}\nPhone: {phone}\nAadhar: {aadhar}\nRole: *{role}*\nStatus: {status}\nMember since: {joined}"
	UpdatePhonePrompt   = "📞 *Update Phone:* Please enter your new 10-digit phone number now."
	PhoneUpdated        = "✅ Phone number updated successfully!"
	PhoneInvalid        = "❌ Invalid phone number. Please enter a 10-digit number only."
	CompleteProfileHint = "ℹ️ Please complete your profile first:\n`my profile details [Name] / [Aadhar Number] / [Phone Number]`"
)

// Search.
const (
	SearchFrom          = "🗺️ *Travel From:* Please *type the full name of your boarding city*:"
	SearchTo            = "➡️ *Travel To:* Please *type the full name of your drop-off city*:"
	SearchCityInvalid   = "❌ City not found. Please ensure you type the full city name correctly (e.g., 'Pune'). Try again:"
	SearchRouteNotFound = "❌ No routes available from *{city}*. Please check your spelling or try another city."
	SearchDate          = "📅 *Travel Date:* When do you plan to travel?\n\n*Reply with a date in YYYY-MM-DD format* (e.g., 2025-12-25) or type *'Today'* or *'Tomorrow'*."
	SearchDateInvalid   = "❌ Please use YYYY-MM-DD, 'Today' or 'Tomorrow'."
	SearchResults       = "🚌 *Search Results ({from} to {to}, {date})* 🚌\n\n"
	SearchResultItem    = "*{busID}* {name}\n🕒 {time} → {arrive} • 💰 {price} • {kind}\n👉 `show seats {busID}`\n\n"
	NoBuses             = "❌ *No buses available matching your criteria.*\n\nPlease check back later or try different routes."
)

// Seat map.
const (
	SpecifyBusID     = "❌ Please specify the Bus ID.\nExample: `show seats BUS1A2B3C4D`"
	SeatMapHeader    = "🚍 *Seat Map - {busID}* ({layout})\nRoute: {from} → {to}\nDate: {date} 🕒 {time}\n\nLegend: ✅ Available • ⚫ Booked/Locked • 🚺 Female • 🚹 Male • 💺 Seater • 🛏️ Sleeper"
	SeatMapGroup     = "\n--- {type} Seats ---\n"
	SeatMapItem      = " {seatNo} ({typeIcon}) {statusIcon}{destination}\n"
	SeatMapFooter    = "\n📊 *{available}* seats available / {total} total\n"
	SeatMapBookHint  = "\n👇 *To book, type:* `book seat {busID} SEAT_NO` (e.g., `book seat {busID} {example}`)"
	NoSeatsFound     = "❌ No seats found in the system for bus {busID}."
	LayoutSeater     = "Seater Bus (2x2)"
	LayoutSleeper    = "Sleeper Coach (Upper & Lower Berth)"
	LayoutBoth       = "Semi Sleeper & Seater Mix"
	BusNotFound      = "❌ Bus *{busID}* not found."
	SeatNotAvailable = "❌ Seat {seatNo} on bus {busID} is already booked or invalid."
)

// Booking dialog.
const (
	PromptBoarding         = "🚌 *Boarding Point:* Please enter your preferred *boarding point* for this journey{points}:"
	BoardingInvalid        = "❌ *{point}* is not a boarding point of this bus. Choose one of: {points}"
	BoardingTooShort       = "❌ Please enter a valid boarding point (at least 3 characters). Try again:"
	DestinationTooShort    = "❌ Please enter a valid destination city name (at least 3 characters). Try again:"
	MidRouteDrop           = "⚠️ *{destination}* is not the final stop (*{to}*). Your seat will be released when the bus reaches it."
	TooManyPassengers      = "❌ A single booking can hold at most {max} passengers. Reply *1* to complete the booking."
	PromptDestination      = "📍 *Drop-off Point:* Please enter the passenger's *final destination city* on this route (e.g., *{to}*):"
	GenderPrompt           = "🚻 *Seat Safety:* Is the passenger booking seat {seatNo} a *Male* or *Female*?\n\nPlease reply with *M* or *F*."
	GenderInvalid          = "❌ Please reply with *M* or *F*."
	SafetyViolation        = "🚫 *Seat Safety Violation:* A male cannot book seat {seatNo} as it is next to a female-occupied seat. Please choose another seat."
	DetailsPrompt          = "✍️ *Passenger Details:* Please enter the passenger's Name, Age, and Aadhar number in this exact format:\n`[Name] / [Age] / [Aadhar Number]`"
	DetailsError           = "❌ *Error!* Please provide details in the format: `[Name] / [Age] / [Aadhar Number]`"
	PassengerSaved         = "✅ Details saved for seat {seatNo}.\n\n*What's next?*\n\n1. Complete Booking\n2. Add Another Passenger"
	ActionInvalid          = "❌ Reply *1* to complete the booking or *2* to add another passenger."
	NextSeatPrompt         = "💺 Enter the next seat number for bus {busID} (available: {seats}):"
	SeatAlreadyInBooking   = "❌ Seat {seatNo} is already part of this booking."
	HoldExpired            = "⌛ Your seat hold has expired. Your seats were released, please start again."
	OrderFailed            = "❌ Failed to create payment order. Seats released. Please try again later."
	PaymentRequired        = "💰 *Payment Required:* Total Amount: {amount}.\n\n*Order ID: {orderId}*\n\n*Payment Link:* {paymentUrl}\n\n_(Note: Your seat is held for {ttl} minutes. The ticket will be automatically sent upon successful payment.)_\n\n*Type 'Confirm Payment' after paying, or 'Cancel Booking'.*"
	PaymentAwaiting        = "⏳ Your seat is still locked while we await payment confirmation (Order ID: {orderId}).\n\n*Reply with 'Confirm Payment' or 'Cancel Booking'.*"
	PaymentAlreadyHandled  = "✅ Your payment might have already been processed! Please use `get ticket {bookingId}` or `my bookings`."
	PaymentFailed          = "❌ Payment verification failed. Your seats have been released. Please try booking again."
	PaymentRefund          = "⚠️ We received your payment for order {orderId}, but seats {seats} were no longer held. Booking {bookingId} was cancelled and your refund of {amount} is being processed."
	SessionCleared         = "🧹 *Previous booking session cleared.* Your locked seats have been released."
	NoPaymentSession       = "❌ No active payment session to cancel."
	HoldExpiredNotice      = "⌛ Payment for order {orderId} was not received within {ttl} minutes. Seats {seats} have been released."
	PaymentConfirmedTicket = "✅ *Payment Confirmed & E-Ticket Issued!*\n\n" +
		"🎫 *E-Ticket Details*\nBooking ID: *{bookingId}*\nBus: {busName} ({busType})\nRoute: {from} → {to}\nDate: {journeyDate}\nDeparture: {departTime}\nSeats: {seatList}\n" +
		"Boarding Point: *{boardingPoint}*\nPassenger Drop-off: *{destination}*\n\n" +
		"👤 *Passenger Info (Primary)*\nName: {name}\nPhone: {phone}\n\n" +
		"💰 *Transaction Details*\nOrder ID: {orderId}\nAmount Paid: {amount}\nTime: {dateTime}\n"
)

// Passenger self service.
const (
	NoBookings         = "📭 You don't have any active bookings."
	BookingsHeader     = "🎫 *Your Recent Bookings:*\n\n"
	BookingsItem       = "• *{bookingId}* ({busID})\n  {name} @ {seats}\n  Status: *{status}* on {date}\n\n"
	BookingsFooter     = "💡 Use `get ticket BOOKID` or `check status BOOKID`."
	TicketNotFound     = "❌ E-Ticket for Booking ID *{bookingId}* not found or not confirmed."
	BookingStatusInfo  = "📋 *Booking Status - {bookingId}*\n\nBus: {busID}\nSeats: {seats}\nStatus: *{status}*\nBooked On: {date}"
	BookingCancelled   = "🗑️ *Booking Cancelled*\n\nBooking {bookingId} has been cancelled successfully.\n\nYour refund will be processed and credited within 6 hours of *{dateTime}*."
	BookingNotActive   = "❌ Booking *{bookingId}* is not confirmed or does not exist."
	SpecifyBookingID   = "❌ Please specify the Booking ID.\nExample: `{example} BOOK1A2B3C4D`"
	SeatChangeInvalid  = "❌ Invalid format. Use: `request seat change BOOKID NEW_SEAT`"
	SeatChangeWIP      = "🚧 Seat change request received for Booking *{bookingId}* (New seat: {newSeat}). This feature requires manager approval, and is currently pending implementation."
	FareAlertInvalid   = "❌ Invalid format. Use: `alert on [FROM] to [TO] @ [HH:MM]`"
	FareAlertSet       = "🔔 *Fare Alert Set!* We will notify you if tickets for {from} to {to} around {time} become available or change significantly."
	FareAlertsHeader   = "🔔 *Recent Fare Alerts*\n\n"
	FareAlertsItem     = "• {from} → {to} @ {time} (user {userId}, {date})\n"
	NoFareAlerts       = "📭 No fare alerts have been set yet."
	PassengerTracking  = "🚍 *Live Tracking - {busID}*\n\n📍 *Last Location:* {location}\n🕒 *Last Updated:* {time}\n\n🔗 *Tracking Link:* {trackingUrl}?bus={busID}"
	TrackingNotStarted = "❌ Bus *{busID}* has not started tracking yet or the route is finished. Please check with the operator."
)

// Manager: bus wizard and seats.
const (
	AddBusInit         = "📝 *Bus Creation:* Enter the *Bus Number* (e.g., `MH-12 AB 1234`):"
	BusNumberInvalid   = "❌ Invalid Bus Number. Try again:"
	AddBusName         = "🚌 Enter the *Bus Name* (e.g., `Sharma Travels`):"
	AddBusRoute        = "📍 Enter the Route (e.g., `Delhi to Jaipur`):"
	AddBusRouteInvalid = "❌ Please enter the route as `FROM to TO`."
	AddBusPrice        = "💰 Enter the Base Price (e.g., `850`):"
	AddBusPriceInvalid = "❌ Please enter a positive amount (e.g., `850`)."
	AddBusKind         = "🛋️ Enter the *Bus Seating Layout* (*Seater*, *Sleeper*, or *Both*):"
	InvalidKind        = "❌ Invalid layout. Please enter *Seater*, *Sleeper*, or *Both*."
	AddSeatType        = "🪑 Enter the seat type for *Row {row}* (*Sleeper Upper*, *Sleeper Lower*, or *Seater*):"
	InvalidSeatType    = "❌ Invalid seat type. Please enter *Sleeper Upper*, *Sleeper Lower*, or *Seater*."
	AddBusDepartDate   = "📅 Enter the Departure Date (YYYY-MM-DD, e.g., `2025-12-25`):"
	InvalidDate        = "❌ Please use the YYYY-MM-DD format."
	AddBusDepartTime   = "🕒 Enter the Departure Time (HH:MM, 24h format, e.g., `08:30`):"
	AddBusArriveTime   = "🕡 Enter the Estimated Arrival Time (HH:MM, 24h format, e.g., `18:00`):"
	InvalidTime        = "❌ Please use the HH:MM 24h format."
	AddBusPhone        = "📞 Enter your Phone Number to associate with the bus:"
	AddBoardingInit    = "📍 *Boarding Points:* Enter the points and times in the format:\n`[Point Name] / [HH:MM]`\n\nSend *'DONE'* when finished (max {max} points):"
	AddBoardingMore    = "✅ Point added. Add another (or send *'DONE'*):"
	AddBoardingInvalid = "❌ Invalid format. Please use: `[Point Name] / [HH:MM]`"
	AddBoardingNone    = "❌ Add at least one boarding point before sending *'DONE'*."
	BusSaved           = "✅ *Bus {busID} created!* Route: {route}.\n\n*Next Step:* Now, create the seats for this bus by typing:\n`add seats {busID} 40`"
	SeatsSaved         = "✅ *Seats Added!* {count} seats have been created for bus {busID} and marked available. You can now use `show seats {busID}`."
	SeatsInvalid       = "❌ Invalid format. Please use: `add seats [BUSID] [COUNT]` (COUNT between 1 and 40)"
	NoRowConfig        = "❌ Bus {busID} has no seat rows configured. Please recreate it with `add bus`."

	TripsHeader    = "🚌 *Your Active Trips:*\n\n"
	TripsItem      = "• *{busID}* {from} → {to}\n  {date} {time} • Status: *{status}*\n"
	NoActiveTrips  = "📭 You currently have no active or scheduled trips assigned."
	ManifestHeader = "📋 *Bus Manifest - {busID}*\nRoute: {from} → {to}\nDate: {date}\nTotal Booked Seats: {count}\n\n"
	ManifestEntry  = " • *Seat {seat}:* {name} (Aadhar {aadhar}) {gender}\n"
	NoManifest     = "❌ No confirmed bookings found for bus {busID}."

	CheckinInvalid     = "❌ Invalid format. Use: `check-in BOOKID`"
	CheckinSuccess     = "✅ Passenger check-in successful for Booking *{bookingId}*. Status set to 'Boarded'."
	SeatReleaseInvalid = "❌ Invalid format. Use: `release seat BUSID SEAT_NO`"
	SeatReleaseSuccess = "✅ Seat *{seatNo}* on Bus *{busID}* released and set to 'Available'."
)

// Manager: tracking and sync.
const (
	TrackingPrompt         = "📍 *Start Tracking:* Enter the Bus ID that is now departing (e.g., `BUS1A2B3C4D`):"
	TrackingLocationPrompt = "📍 *Current Location:* Where is the bus departing from? (e.g., `Mumbai Central Bus Stand`):"
	TrackingDurationPrompt = "⏳ *Sharing Duration:* For how long should the location tracking run? (e.g., `3 hours`, `45 minutes`):"
	TrackingDurationBad    = "❌ Invalid or too short duration. Please use format 'X hours' or 'Y minutes' (min 15 min):"
	TrackingStarted        = "✅ *LIVE Location Sharing Started for {busID}!*\n\n📍 *Tracking Link:* {trackingUrl}?bus={busID}\n\nPassengers have been notified. Tracking will automatically stop at *{stopTime}*."
	TrackingStopped        = "⏹️ *Tracking Stopped for {busID}.* The journey status is now 'Arrived'."
	TrackingNotActive      = "❌ Bus *{busID}* is not being tracked."
	TrackingAutoStopped    = "⏰ *Tracking Session Ended.* Bus {busID} tracking automatically stopped at {time} after {duration} and status set to 'Arrived'."
	PassengerTrackingStart = "🚌 *Your bus {busID} has departed!*\n\n📍 Current location: {location}\n🕒 Started: {time}\n\nType `track bus {busID}` any time for the live location."
	MidRouteReleased       = "🏁 You have reached *{location}*. Seat {seatNo} on bus {busID} has been released. Thank you for travelling with us!"

	SyncInit    = "📝 *Inventory Sync Setup:* Enter the Bus ID you wish to synchronize (e.g., `BUS1A2B3C4D`)."
	SyncURL     = "🔗 Enter the *OSP API Endpoint* (the external URL for inventory data) for bus {busID}:"
	SyncSuccess = "✅ *Inventory Sync Setup Successful!* Bus {busID} is now configured to pull data from {url}."
	URLInvalid  = "❌ Please enter a valid http(s) URL."
)

// Owner.
const (
	StaffInvalid       = "❌ Invalid format. Use: `assign manager CHAT_ID` or `revoke manager CHAT_ID`"
	StaffUnknown       = "❌ User with Chat ID *{chatId}* is not registered."
	StaffAssigned      = "✅ Chat ID *{chatId}* role updated to *manager*."
	StaffRevoked       = "✅ Chat ID *{chatId}* role revoked (set to user)."
	OwnerOnly          = "❌ Only Bus Owners can do that."
	RevenueReport      = "💵 *Revenue Report for {date}*\n\nTotal Confirmed Bookings: {count}\nTotal Revenue (Gross): *{total}*"
	BusStatusInvalid   = "❌ Invalid status. Status must be one of: `scheduled`, `departed`, `arrived`, or `maintenance`.\nExample: `set status BUS1A2B3C4D maintenance`"
	BusStatusUpdated   = "✅ Bus *{busID}* status updated to *{status}*."
	AadharConfigShow   = "🔒 *Aadhar Verification API Configuration*\n\nEndpoint URL: `{url}`\nStatus: {status}\n\nTo update, type `setup aadhar api`."
	AadharAPIInit      = "🔒 *Aadhar Verification Setup:* Enter the verification API endpoint URL:"
	AadharAPIKeyPrompt = "🔑 Enter the API key for {url} (or `skip`):"
	AadharAPISuccess   = "✅ Aadhar API Endpoint set to: {url}"
)

// Manager notifications.
const (
	ManagerBooking      = "🔔 *NEW BOOKING ALERT ({busID})*\n\nSeats: {seats}\nPassenger: {passengerName}\nTime: {dateTime}\n\nUse `show manifest {busID}` to view the full list."
	ManagerCancellation = "🗑️ *CANCELLATION ALERT ({busID})*\n\nBooking ID: {bookingId}\nSeats: {seats}\nTime: {dateTime}\n\nSeats have been automatically released."
)

// Operator commands.
const (
	TickSummary  = "⏱ *Tick done*\n\nBuses: {buses}\nUpdated: {updated}\nReleased seats: {released}\nStopped: {stopped}\nExpired orders: {sessions}\nFreed locks: {locks}"
	TickSkipped  = "⏱ Tick skipped: another tick is still running."
	SweepSummary = "🧹 *Hold sweep done*\n\nExpired orders: {sessions}\nFreed locks: {locks}"
	AdminOnly    = "❌ This command is for the operator only."
	RateLimited  = "⏳ Slow down a little, please."
)
